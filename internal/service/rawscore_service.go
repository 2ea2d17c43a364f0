package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow-api/internal/models"
	"github.com/gradeflow/gradeflow-api/pkg/errors"
)

// RawScoreWriter persists imported score batches.
type RawScoreWriter interface {
	InsertBatch(ctx context.Context, scores []models.RawScore) error
}

// ImportGuard is the raw-score status slice of migration persistence. The
// EMPTY -> IMPORTING -> PRESENT advance is the sole defense against duplicate
// or concurrent imports.
type ImportGuard interface {
	BeginRawScoreImport(ctx context.Context, id string, source models.RawScoreSource, message string) (bool, error)
	FinishRawScoreImport(ctx context.Context, id string, message string) (bool, error)
}

// RawScoreService ingests vendor CSV exports into raw score storage ahead of
// score processing.
type RawScoreService struct {
	migrations ImportGuard
	rawScores  RawScoreWriter
	location   *time.Location
	logger     *zap.Logger
}

// NewRawScoreService constructs the importer. Naive timestamps in CSV files
// are interpreted in the given location.
func NewRawScoreService(migrations ImportGuard, rawScores RawScoreWriter, location *time.Location, logger *zap.Logger) *RawScoreService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RawScoreService{
		migrations: migrations,
		rawScores:  rawScores,
		location:   location,
		logger:     logger,
	}
}

// Import parses one vendor CSV and stores its rows for a migration. Returns
// the number of imported scores.
func (s *RawScoreService) Import(ctx context.Context, migrationID string, source models.RawScoreSource, r io.Reader) (int, error) {
	var parse func(migrationID string, r io.Reader) ([]models.RawScore, error)
	switch source {
	case models.RawScoreSourceGradescope:
		parse = s.parseGradescope
	case models.RawScoreSourcePrairieLearn:
		parse = s.parsePrairieLearn
	default:
		return 0, errors.Clone(errors.ErrValidation, fmt.Sprintf("unsupported raw score source %q", source))
	}

	ok, err := s.migrations.BeginRawScoreImport(ctx, migrationID, source, "import in progress")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Clone(errors.ErrConflict, "raw scores were already imported for this migration")
	}

	scores, err := parse(migrationID, r)
	if err != nil {
		return 0, errors.Clone(errors.ErrValidation, fmt.Sprintf("failed to parse %s export: %v", source, err))
	}
	if err := s.rawScores.InsertBatch(ctx, scores); err != nil {
		return 0, err
	}

	message := fmt.Sprintf("imported %d scores from %s", len(scores), source)
	if _, err := s.migrations.FinishRawScoreImport(ctx, migrationID, message); err != nil {
		return 0, err
	}
	s.logger.Sugar().Infow("raw scores imported",
		"migration_id", migrationID, "source", source, "count", len(scores))
	return len(scores), nil
}

// parseGradescope reads a Gradescope assignment export. Expected columns:
// SID, Total Score, Status, Submission Time, Lateness (H:M:S).
func (s *RawScoreService) parseGradescope(migrationID string, r io.Reader) ([]models.RawScore, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	sid, err := findColumn(header, "SID")
	if err != nil {
		return nil, err
	}
	totalScore, err := findColumn(header, "Total Score")
	if err != nil {
		return nil, err
	}
	status, err := findColumn(header, "Status")
	if err != nil {
		return nil, err
	}
	submissionTime, err := findColumn(header, "Submission Time")
	if err != nil {
		return nil, err
	}
	lateness, err := findColumn(header, "Lateness (H:M:S)")
	if err != nil {
		return nil, err
	}

	var scores []models.RawScore
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		cwid := strings.TrimSpace(record[sid])
		if cwid == "" {
			continue
		}

		raw := models.RawScore{MigrationID: migrationID, CWID: cwid}

		if strings.EqualFold(strings.TrimSpace(record[status]), "Missing") {
			raw.SubmissionStatus = models.SubmissionStatusMissing
			scores = append(scores, raw)
			continue
		}

		score, err := strconv.ParseFloat(strings.TrimSpace(record[totalScore]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid score %q", line, record[totalScore])
		}
		raw.Score = &score

		if ts := strings.TrimSpace(record[submissionTime]); ts != "" {
			parsed, err := s.parseTimestamp(ts)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			raw.SubmissionTime = &parsed
		}

		hoursLate, err := parseLateness(strings.TrimSpace(record[lateness]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		raw.HoursLate = &hoursLate
		if hoursLate > 0 {
			raw.SubmissionStatus = models.SubmissionStatusLate
		} else {
			raw.SubmissionStatus = models.SubmissionStatusOnTime
		}

		scores = append(scores, raw)
	}
	return scores, nil
}

// parsePrairieLearn reads a PrairieLearn best-submissions export. Expected
// columns: UID, Points, Submission date. Lateness is left to the scoring
// engine, which knows the due date.
func (s *RawScoreService) parsePrairieLearn(migrationID string, r io.Reader) ([]models.RawScore, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	uid, err := findColumn(header, "UID")
	if err != nil {
		return nil, err
	}
	points, err := findColumn(header, "Points")
	if err != nil {
		return nil, err
	}
	submissionDate, err := findColumn(header, "Submission date")
	if err != nil {
		return nil, err
	}

	var scores []models.RawScore
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		// PrairieLearn UIDs are campus emails; the local part is the CWID.
		cwid := strings.TrimSpace(record[uid])
		if at := strings.Index(cwid, "@"); at > 0 {
			cwid = cwid[:at]
		}
		if cwid == "" {
			continue
		}

		raw := models.RawScore{MigrationID: migrationID, CWID: cwid}

		rawPoints := strings.TrimSpace(record[points])
		if rawPoints == "" {
			raw.SubmissionStatus = models.SubmissionStatusMissing
			scores = append(scores, raw)
			continue
		}
		score, err := strconv.ParseFloat(rawPoints, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid points %q", line, rawPoints)
		}
		raw.Score = &score
		raw.SubmissionStatus = models.SubmissionStatusOnTime

		if ts := strings.TrimSpace(record[submissionDate]); ts != "" {
			parsed, err := s.parseTimestamp(ts)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			raw.SubmissionTime = &parsed
		}

		scores = append(scores, raw)
	}
	return scores, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func (s *RawScoreService) parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.location); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// parseLateness converts Gradescope's H:M:S lateness into fractional hours.
func parseLateness(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("unrecognized lateness %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("unrecognized lateness %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("unrecognized lateness %q", raw)
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("unrecognized lateness %q", raw)
	}
	return float64(hours) + float64(minutes)/60 + float64(seconds)/3600, nil
}

func findColumn(header []string, name string) (int, error) {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("missing column %q", name)
}
