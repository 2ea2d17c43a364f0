package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradeflow/gradeflow-api/internal/models"
	appErrors "github.com/gradeflow/gradeflow-api/pkg/errors"
)

type importGuardStub struct {
	mu        sync.Mutex
	beginOK   bool
	began     int
	finished  int
	lastFinal string
}

func (s *importGuardStub) BeginRawScoreImport(ctx context.Context, id string, source models.RawScoreSource, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.beginOK {
		return false, nil
	}
	s.began++
	return true, nil
}

func (s *importGuardStub) FinishRawScoreImport(ctx context.Context, id string, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
	s.lastFinal = message
	return true, nil
}

type rawScoreWriterStub struct {
	mu      sync.Mutex
	batches [][]models.RawScore
}

func (s *rawScoreWriterStub) InsertBatch(ctx context.Context, scores []models.RawScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, scores)
	return nil
}

func (s *rawScoreWriterStub) all() []models.RawScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RawScore
	for _, batch := range s.batches {
		out = append(out, batch...)
	}
	return out
}

func newImportFixture(beginOK bool) (*RawScoreService, *importGuardStub, *rawScoreWriterStub) {
	guard := &importGuardStub{beginOK: beginOK}
	writer := &rawScoreWriterStub{}
	return NewRawScoreService(guard, writer, time.UTC, nil), guard, writer
}

const gradescopeCSV = `Name,SID,Email,Total Score,Max Points,Status,Submission ID,Submission Time,Lateness (H:M:S)
Alice Aardvark,S1,alice@example.edu,92.5,100,Graded,101,2026-02-10 21:14:02 -0700,0:00:00
Bob Badger,S2,bob@example.edu,78,100,Graded,102,2026-02-11 03:30:00 -0700,6:30:00
Carol Capuchin,S3,carol@example.edu,,100,Missing,,,
`

func TestImportGradescopeExport(t *testing.T) {
	service, guard, writer := newImportFixture(true)

	count, err := service.Import(context.Background(), "m-1", models.RawScoreSourceGradescope, strings.NewReader(gradescopeCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, guard.finished)
	assert.Equal(t, "imported 3 scores from gradescope", guard.lastFinal)

	scores := writer.all()
	require.Len(t, scores, 3)

	byCWID := map[string]models.RawScore{}
	for _, score := range scores {
		assert.Equal(t, "m-1", score.MigrationID)
		byCWID[score.CWID] = score
	}

	alice := byCWID["S1"]
	require.NotNil(t, alice.Score)
	assert.Equal(t, 92.5, *alice.Score)
	assert.Equal(t, models.SubmissionStatusOnTime, alice.SubmissionStatus)
	require.NotNil(t, alice.HoursLate)
	assert.Equal(t, 0.0, *alice.HoursLate)
	require.NotNil(t, alice.SubmissionTime)
	assert.Equal(t, time.Date(2026, 2, 11, 4, 14, 2, 0, time.UTC), *alice.SubmissionTime)

	bob := byCWID["S2"]
	assert.Equal(t, models.SubmissionStatusLate, bob.SubmissionStatus)
	require.NotNil(t, bob.HoursLate)
	assert.Equal(t, 6.5, *bob.HoursLate)

	carol := byCWID["S3"]
	assert.Nil(t, carol.Score)
	assert.Equal(t, models.SubmissionStatusMissing, carol.SubmissionStatus)
}

const prairieLearnCSV = `UID,UIN,Username,Name,Role,Assessment,Assessment instance,Points,Max points,Score (%),Submission date
s1@example.edu,123,s1,Alice Aardvark,Student,Homework 1,1,95,100,95,2026-02-10T20:00:00
s2@example.edu,124,s2,Bob Badger,Student,Homework 1,1,,100,,
`

func TestImportPrairieLearnExport(t *testing.T) {
	service, _, writer := newImportFixture(true)

	count, err := service.Import(context.Background(), "m-2", models.RawScoreSourcePrairieLearn, strings.NewReader(prairieLearnCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	scores := writer.all()
	require.Len(t, scores, 2)

	assert.Equal(t, "s1", scores[0].CWID)
	require.NotNil(t, scores[0].Score)
	assert.Equal(t, 95.0, *scores[0].Score)
	assert.Equal(t, models.SubmissionStatusOnTime, scores[0].SubmissionStatus)
	require.NotNil(t, scores[0].SubmissionTime)

	assert.Equal(t, "s2", scores[1].CWID)
	assert.Nil(t, scores[1].Score)
	assert.Equal(t, models.SubmissionStatusMissing, scores[1].SubmissionStatus)
}

func TestImportRejectsSecondAttempt(t *testing.T) {
	service, _, writer := newImportFixture(false)

	_, err := service.Import(context.Background(), "m-1", models.RawScoreSourceGradescope, strings.NewReader(gradescopeCSV))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, writer.batches)
}

func TestImportRejectsUnsupportedSource(t *testing.T) {
	service, guard, _ := newImportFixture(true)

	_, err := service.Import(context.Background(), "m-1", models.RawScoreSource("canvas"), strings.NewReader(""))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, 0, guard.began)
}

func TestImportRejectsMalformedCSV(t *testing.T) {
	service, _, writer := newImportFixture(true)

	csv := "Name,SID\nAlice,S1\n"
	_, err := service.Import(context.Background(), "m-1", models.RawScoreSourceGradescope, strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Total Score")
	assert.Empty(t, writer.batches)
}

func TestParseLateness(t *testing.T) {
	cases := []struct {
		raw   string
		hours float64
	}{
		{"", 0},
		{"0:00:00", 0},
		{"6:30:00", 6.5},
		{"27:15:00", 27.25},
	}
	for _, tc := range cases {
		hours, err := parseLateness(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.hours, hours, tc.raw)
	}

	_, err := parseLateness("90 minutes")
	require.Error(t, err)
}
