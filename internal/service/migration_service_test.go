package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradeflow/gradeflow-api/internal/broker"
	"github.com/gradeflow/gradeflow-api/internal/dto"
	"github.com/gradeflow/gradeflow-api/internal/models"
	appErrors "github.com/gradeflow/gradeflow-api/pkg/errors"
)

type masterStoreStub struct {
	mu      sync.Mutex
	masters map[string]*models.MasterMigration
}

func newMasterStoreStub(masters ...*models.MasterMigration) *masterStoreStub {
	s := &masterStoreStub{masters: map[string]*models.MasterMigration{}}
	for _, m := range masters {
		s.masters[m.ID] = m
	}
	return s
}

func (s *masterStoreStub) Create(ctx context.Context, m *models.MasterMigration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = fmt.Sprintf("master-%d", len(s.masters)+1)
	}
	if m.Status == "" {
		m.Status = models.MigrationStatusCreated
	}
	copied := *m
	s.masters[m.ID] = &copied
	return nil
}

func (s *masterStoreStub) GetByID(ctx context.Context, id string) (*models.MasterMigration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.masters[id]
	if !ok {
		return nil, fmt.Errorf("get master migration: %w", sql.ErrNoRows)
	}
	copied := *m
	return &copied, nil
}

func (s *masterStoreStub) ListByCourse(ctx context.Context, courseID string) ([]models.MasterMigration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MasterMigration
	for _, m := range s.masters {
		if m.CourseID == courseID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *masterStoreStub) UpdateStatusIf(ctx context.Context, id string, from, to models.MigrationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.masters[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (s *masterStoreStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.masters, id)
	return nil
}

func (s *masterStoreStub) status(id string) models.MigrationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.masters[id].Status
}

type migrationStoreStub struct {
	mu         sync.Mutex
	migrations map[string]*models.Migration
}

func newMigrationStoreStub(migrations ...*models.Migration) *migrationStoreStub {
	s := &migrationStoreStub{migrations: map[string]*models.Migration{}}
	for _, m := range migrations {
		s.migrations[m.ID] = m
	}
	return s
}

func (s *migrationStoreStub) Create(ctx context.Context, m *models.Migration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = fmt.Sprintf("migration-%d", len(s.migrations)+1)
	}
	if m.RawScoreStatus == "" {
		m.RawScoreStatus = models.RawScoreStatusEmpty
	}
	copied := *m
	s.migrations[m.ID] = &copied
	return nil
}

func (s *migrationStoreStub) GetByID(ctx context.Context, id string) (*models.Migration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.migrations[id]
	if !ok {
		return nil, fmt.Errorf("get migration: %w", sql.ErrNoRows)
	}
	copied := *m
	return &copied, nil
}

func (s *migrationStoreStub) ListByMaster(ctx context.Context, masterID string) ([]models.Migration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Migration
	for _, m := range s.migrations {
		if m.MasterMigrationID == masterID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *migrationStoreStub) SetPolicy(ctx context.Context, id string, policyID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.migrations[id]; ok {
		m.PolicyID = policyID
	}
	return nil
}

type logStub struct {
	mu      sync.Mutex
	entries []models.TransactionLogEntry
}

func (s *logStub) Append(ctx context.Context, entry *models.TransactionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, e := range s.entries {
		if e.MigrationID == entry.MigrationID && e.CWID == entry.CWID && e.Revision > max {
			max = e.Revision
		}
	}
	entry.Revision = max + 1
	entry.ID = int64(len(s.entries) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *logStub) ListByMigration(ctx context.Context, migrationID string) ([]models.TransactionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TransactionLogEntry
	for _, e := range s.entries {
		if e.MigrationID == migrationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *logStub) ListByStudent(ctx context.Context, migrationID, cwid string) ([]models.TransactionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TransactionLogEntry
	for _, e := range s.entries {
		if e.MigrationID == migrationID && e.CWID == cwid {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *logStub) ListCurrent(ctx context.Context, migrationID string) ([]models.TransactionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := map[string]models.TransactionLogEntry{}
	for _, e := range s.entries {
		if e.MigrationID != migrationID {
			continue
		}
		if prev, ok := current[e.CWID]; !ok || e.Revision > prev.Revision {
			current[e.CWID] = e
		}
	}
	out := make([]models.TransactionLogEntry, 0, len(current))
	for _, e := range current {
		out = append(out, e)
	}
	return out, nil
}

type rawScoreReaderStub struct {
	scores map[string][]models.RawScore
}

func (s *rawScoreReaderStub) ListByMigration(ctx context.Context, migrationID string) ([]models.RawScore, error) {
	return s.scores[migrationID], nil
}

type policyStoreStub struct {
	mu       sync.Mutex
	policies map[string]*models.Policy
}

func newPolicyStoreStub(policies ...*models.Policy) *policyStoreStub {
	s := &policyStoreStub{policies: map[string]*models.Policy{}}
	for _, p := range policies {
		s.policies[p.ID] = p
	}
	return s
}

func (s *policyStoreStub) GetByID(ctx context.Context, id string) (*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("get policy: %w", sql.ErrNoRows)
	}
	copied := *p
	return &copied, nil
}

func (s *policyStoreStub) IncrementUsage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[id].NumberOfMigrations++
	return nil
}

func (s *policyStoreStub) DecrementUsage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policies[id].NumberOfMigrations > 0 {
		s.policies[id].NumberOfMigrations--
	}
	return nil
}

func (s *policyStoreStub) usage(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policies[id].NumberOfMigrations
}

type courseStoreStub struct {
	course      models.Course
	assignments map[string]models.Assignment
	students    []models.CourseMember
}

func (s *courseStoreStub) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	if id != s.course.ID {
		return nil, fmt.Errorf("get course: %w", sql.ErrNoRows)
	}
	course := s.course
	return &course, nil
}

func (s *courseStoreStub) GetCourseForMigration(ctx context.Context, migrationID string) (*models.Course, error) {
	course := s.course
	return &course, nil
}

func (s *courseStoreStub) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("get assignment: %w", sql.ErrNoRows)
	}
	return &a, nil
}

func (s *courseStoreStub) ListStudents(ctx context.Context, courseID string) ([]models.CourseMember, error) {
	return s.students, nil
}

func (s *courseStoreStub) FindMember(ctx context.Context, courseID, cwid string) (*models.CourseMember, error) {
	for _, m := range s.students {
		if m.CWID == cwid {
			member := m
			return &member, nil
		}
	}
	return nil, nil
}

type lateRequestStoreStub struct {
	requests map[string]models.LateRequest
}

func (s *lateRequestStoreStub) GetByID(ctx context.Context, id string) (*models.LateRequest, error) {
	lr, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return &lr, nil
}

func (s *lateRequestStoreStub) MapByAssignment(ctx context.Context, assignmentID string) (map[string]models.LateRequest, error) {
	byCWID := map[string]models.LateRequest{}
	for _, lr := range s.requests {
		if lr.AssignmentID == assignmentID {
			byCWID[lr.CWID] = lr
		}
	}
	return byCWID, nil
}

type taskSubmitterStub struct {
	mu   sync.Mutex
	jobs []*SubmittedJob
}

func (s *taskSubmitterStub) Submit(ctx context.Context, job *SubmittedJob) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.Task.ID == "" {
		job.Task.ID = fmt.Sprintf("task-%d", len(s.jobs)+1)
	}
	job.Task.Status = models.TaskStatusQueued
	s.jobs = append(s.jobs, job)
	return job.Task, nil
}

type announcerStub struct {
	mu    sync.Mutex
	calls []dto.GradingStartMessage
	err   error
}

func (s *announcerStub) AnnounceGradingStart(ctx context.Context, msg dto.GradingStartMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, msg)
	return nil
}

type gradebookStub struct {
	mu    sync.Mutex
	posts []int
}

func (s *gradebookStub) PostScores(ctx context.Context, courseID, assignmentID int64, scores []dto.GradebookScoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, len(scores))
	return nil
}

type migrationFixture struct {
	service   *MigrationService
	masters   *masterStoreStub
	migs      *migrationStoreStub
	log       *logStub
	policies  *policyStoreStub
	courses   *courseStoreStub
	tasks     *taskSubmitterStub
	announcer *announcerStub
	gradebook *gradebookStub
	lateReqs  *lateRequestStoreStub
	rawScores *rawScoreReaderStub
}

func newMigrationFixture(masters *masterStoreStub, migs *migrationStoreStub) *migrationFixture {
	f := &migrationFixture{
		masters:  masters,
		migs:     migs,
		log:      &logStub{},
		policies: newPolicyStoreStub(&models.Policy{ID: "policy-1", URI: "s3://policies/p1.js"}),
		courses: &courseStoreStub{
			course: models.Course{ID: "course-1", GradebookCourseID: 900},
			assignments: map[string]models.Assignment{
				"hw1": {ID: "hw1", Name: "Homework 1", Points: 100, GradebookAssignmentID: 11},
				"hw2": {ID: "hw2", Name: "Homework 2", Points: 50, GradebookAssignmentID: 12},
			},
			students: []models.CourseMember{
				{CWID: "S1", CourseID: "course-1", GradebookID: "gb-1", Role: models.CourseRoleStudent},
				{CWID: "S2", CourseID: "course-1", GradebookID: "gb-2", Role: models.CourseRoleStudent},
			},
		},
		tasks:     &taskSubmitterStub{},
		announcer: &announcerStub{},
		gradebook: &gradebookStub{},
		lateReqs:  &lateRequestStoreStub{requests: map[string]models.LateRequest{}},
		rawScores: &rawScoreReaderStub{scores: map[string][]models.RawScore{}},
	}

	openPublish := func(ctx context.Context, key string) (broker.PublishChannel, error) {
		return &publishChannelStub{}, nil
	}
	openReceive := func(ctx context.Context, key string, onMessage broker.ScoredHandler) (broker.ReceiveChannel, error) {
		return &receiveChannelStub{}, nil
	}

	f.service = NewMigrationService(MigrationServiceDeps{
		Masters:      f.masters,
		Migrations:   f.migs,
		Log:          f.log,
		RawScores:    f.rawScores,
		Policies:     f.policies,
		Courses:      f.courses,
		LateRequests: f.lateReqs,
		Tasks:        f.tasks,
		Channels:     NewScoreChannelFactory(openPublish, openReceive, nil),
		Engine:       f.announcer,
		Gradebook:    f.gradebook,
	})
	return f
}

func policyRef(id string) *string { return &id }

func twoMigrationFixture(status models.MigrationStatus) *migrationFixture {
	masters := newMasterStoreStub(&models.MasterMigration{ID: "mm-1", CourseID: "course-1", Status: status})
	migs := newMigrationStoreStub(
		&models.Migration{ID: "m-1", MasterMigrationID: "mm-1", AssignmentID: "hw1", PolicyID: policyRef("policy-1"), RawScoreStatus: models.RawScoreStatusPresent},
		&models.Migration{ID: "m-2", MasterMigrationID: "mm-1", AssignmentID: "hw2", PolicyID: policyRef("policy-1"), RawScoreStatus: models.RawScoreStatusPresent},
	)
	return newMigrationFixture(masters, migs)
}

func TestStartProcessingRejectsWrongState(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusCreated)

	_, err := f.service.StartProcessing(context.Background(), "mm-1", "prof")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	assert.Equal(t, models.MigrationStatusCreated, f.masters.status("mm-1"))
	assert.Empty(t, f.tasks.jobs)
}

func TestStartProcessingFansOutTasksPerMigration(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusLoaded)

	tasks, err := f.service.StartProcessing(context.Background(), "mm-1", "prof")
	require.NoError(t, err)
	require.Len(t, tasks, 4)
	assert.Equal(t, models.MigrationStatusStarted, f.masters.status("mm-1"))

	var zeroOut, process int
	for _, job := range f.tasks.jobs {
		switch job.Task.Type {
		case models.TaskTypeZeroOutScores:
			zeroOut++
			assert.Empty(t, job.DependsOn)
		case models.TaskTypeProcessScores:
			process++
			require.Len(t, job.DependsOn, 1)
		}
	}
	assert.Equal(t, 2, zeroOut)
	assert.Equal(t, 2, process)

	// each process-scores task depends on the zero-out task submitted just before it
	for i := 1; i < len(f.tasks.jobs); i += 2 {
		assert.Equal(t, f.tasks.jobs[i-1].Task.ID, f.tasks.jobs[i].DependsOn[0])
	}
}

func TestStartProcessingRequiresPolicyOnEveryMigration(t *testing.T) {
	masters := newMasterStoreStub(&models.MasterMigration{ID: "mm-1", CourseID: "course-1", Status: models.MigrationStatusLoaded})
	migs := newMigrationStoreStub(
		&models.Migration{ID: "m-1", MasterMigrationID: "mm-1", AssignmentID: "hw1", RawScoreStatus: models.RawScoreStatusPresent},
	)
	f := newMigrationFixture(masters, migs)

	_, err := f.service.StartProcessing(context.Background(), "mm-1", "prof")
	require.Error(t, err)
	assert.Equal(t, models.MigrationStatusLoaded, f.masters.status("mm-1"))
	assert.Empty(t, f.tasks.jobs)
}

func TestValidateLoadRequiresAllRawScoresPresent(t *testing.T) {
	masters := newMasterStoreStub(&models.MasterMigration{ID: "mm-1", CourseID: "course-1", Status: models.MigrationStatusCreated})
	migs := newMigrationStoreStub(
		&models.Migration{ID: "m-1", MasterMigrationID: "mm-1", AssignmentID: "hw1", RawScoreStatus: models.RawScoreStatusPresent},
		&models.Migration{ID: "m-2", MasterMigrationID: "mm-1", AssignmentID: "hw2", RawScoreStatus: models.RawScoreStatusEmpty},
	)
	f := newMigrationFixture(masters, migs)

	_, err := f.service.ValidateLoad(context.Background(), "mm-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hw2")
	assert.Equal(t, models.MigrationStatusCreated, f.masters.status("mm-1"))
}

func TestValidateLoadAdvancesToLoaded(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusCreated)

	master, err := f.service.ValidateLoad(context.Background(), "mm-1")
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusLoaded, master.Status)
	assert.Equal(t, models.MigrationStatusLoaded, f.masters.status("mm-1"))
}

func TestHandleScoreReceivedAssignsIncreasingRevisions(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusStarted)

	msg := dto.ScoredMessage{
		CWID:             "S1",
		FinalScore:       87.5,
		RawScore:         95,
		SubmissionStatus: models.SubmissionStatusOnTime,
		ExtensionStatus:  models.ExtensionStatusNoExtension,
	}
	require.NoError(t, f.service.HandleScoreReceived(context.Background(), "m-1", msg))

	msg.FinalScore = 90
	require.NoError(t, f.service.HandleScoreReceived(context.Background(), "m-1", msg))

	entries, err := f.log.ListByStudent(context.Background(), "m-1", "S1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Revision)
	assert.Equal(t, 2, entries[1].Revision)

	current, err := f.log.ListCurrent(context.Background(), "m-1")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, 90.0, current[0].Score)
	assert.Equal(t, "gb-1", current[0].GradebookID)
}

func TestHandleScoreReceivedComposesExplanationInOrder(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusStarted)

	response := "Approved, family emergency."
	f.lateReqs.requests["ext-1"] = models.LateRequest{
		ID:               "ext-1",
		AssignmentID:     "hw1",
		CWID:             "S1",
		RequestType:      "late pass",
		DaysRequested:    2,
		ReviewerResponse: &response,
	}

	extMsg := "Due date moved by 2 days."
	subMsg := "Submitted 1 hour past the extended deadline."
	extID := "ext-1"
	msg := dto.ScoredMessage{
		CWID:              "S1",
		FinalScore:        80,
		SubmissionStatus:  models.SubmissionStatusExtended,
		ExtensionStatus:   models.ExtensionStatusApplied,
		ExtensionID:       &extID,
		ExtensionMessage:  &extMsg,
		SubmissionMessage: &subMsg,
	}
	require.NoError(t, f.service.HandleScoreReceived(context.Background(), "m-1", msg))

	entries, err := f.log.ListByStudent(context.Background(), "m-1", "S1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Message)
	assert.Equal(t,
		`Extension "late pass" applied for 2 day(s). Approved, family emergency. Due date moved by 2 days. Submitted 1 hour past the extended deadline.`,
		*entries[0].Message)
	assert.True(t, entries[0].ExtensionApplied)
}

func TestHandleScoreReceivedDropsUnenrolledStudent(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusStarted)

	msg := dto.ScoredMessage{CWID: "ghost", FinalScore: 50, SubmissionStatus: models.SubmissionStatusOnTime}
	require.NoError(t, f.service.HandleScoreReceived(context.Background(), "m-1", msg))

	entries, err := f.log.ListByMigration(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestZeroOutSubmissionsWritesBaselinePerStudent(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusStarted)

	require.NoError(t, f.service.zeroOutSubmissions(context.Background(), "m-1", "prof"))

	current, err := f.log.ListCurrent(context.Background(), "m-1")
	require.NoError(t, err)
	require.Len(t, current, 2)
	for _, entry := range current {
		assert.Equal(t, 0.0, entry.Score)
		assert.Equal(t, models.SubmissionStatusMissing, entry.SubmissionStatus)
		assert.Equal(t, 1, entry.Revision)
	}
}

func TestSetPolicySwapsUsageCounters(t *testing.T) {
	masters := newMasterStoreStub(&models.MasterMigration{ID: "mm-1", CourseID: "course-1", Status: models.MigrationStatusCreated})
	migs := newMigrationStoreStub(
		&models.Migration{ID: "m-1", MasterMigrationID: "mm-1", AssignmentID: "hw1", PolicyID: policyRef("policy-1")},
	)
	f := newMigrationFixture(masters, migs)
	f.policies.policies["policy-1"].NumberOfMigrations = 1
	f.policies.policies["policy-2"] = &models.Policy{ID: "policy-2", URI: "s3://policies/p2.js"}

	migration, err := f.service.SetPolicy(context.Background(), "m-1", "policy-2")
	require.NoError(t, err)
	require.NotNil(t, migration.PolicyID)
	assert.Equal(t, "policy-2", *migration.PolicyID)
	assert.Equal(t, 0, f.policies.usage("policy-1"))
	assert.Equal(t, 1, f.policies.usage("policy-2"))
}

func TestReviewReadMovesStartedToAwaitingReview(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusStarted)

	score := 87.5
	f.rawScores.scores["m-1"] = []models.RawScore{{MigrationID: "m-1", CWID: "S1", Score: &score, SubmissionStatus: models.SubmissionStatusOnTime}}
	require.NoError(t, f.service.HandleScoreReceived(context.Background(), "m-1", dto.ScoredMessage{
		CWID: "S1", FinalScore: 87.5, SubmissionStatus: models.SubmissionStatusOnTime,
	}))

	reviews, err := f.service.GetMigrationsToReview(context.Background(), "mm-1")
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusAwaitingReview, f.masters.status("mm-1"))
	require.Len(t, reviews, 2)

	for _, review := range reviews {
		if review.MigrationID != "m-1" {
			continue
		}
		require.Len(t, review.Scores, 1)
		assert.Equal(t, 87.5, review.Scores[0].Score)
		assert.Equal(t, 1, review.Scores[0].Revision)
	}
}

func TestReviewReadRejectsUnprocessedCycle(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusLoaded)

	_, err := f.service.GetMigrationsToReview(context.Background(), "mm-1")
	require.Error(t, err)
	assert.Equal(t, models.MigrationStatusLoaded, f.masters.status("mm-1"))
}

func TestOverrideScoreRequiresAwaitingReview(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusStarted)

	_, err := f.service.OverrideScore(context.Background(), "mm-1", "m-1", "prof", dto.ScoreChangeRequest{
		CWID:             "S1",
		NewScore:         100,
		SubmissionStatus: string(models.SubmissionStatusOnTime),
		Justification:    "regrade",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestOverrideScoreAppendsNewRevision(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusAwaitingReview)

	require.NoError(t, f.service.HandleScoreReceived(context.Background(), "m-1", dto.ScoredMessage{
		CWID: "S1", FinalScore: 60, SubmissionStatus: models.SubmissionStatusLate,
	}))

	entry, err := f.service.OverrideScore(context.Background(), "mm-1", "m-1", "prof", dto.ScoreChangeRequest{
		CWID:             "S1",
		NewScore:         75,
		SubmissionStatus: string(models.SubmissionStatusOnTime),
		Justification:    "late penalty waived after regrade",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Revision)
	assert.Equal(t, "prof", entry.PerformedBy)

	current, err := f.log.ListCurrent(context.Background(), "m-1")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, 75.0, current[0].Score)
}

func TestPostWorkflowTransitions(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusAwaitingReview)

	master, err := f.service.FinalizeReview(context.Background(), "mm-1")
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusReadyToPost, master.Status)

	tasks, err := f.service.StartPost(context.Background(), "mm-1", "prof")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, models.MigrationStatusPosting, f.masters.status("mm-1"))
	for _, task := range tasks {
		assert.Equal(t, models.TaskTypePostToGradebook, task.Type)
	}

	master, err = f.service.FinalizePost(context.Background(), "mm-1")
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusCompleted, master.Status)

	// posting twice must be rejected
	_, err = f.service.StartPost(context.Background(), "mm-1", "prof")
	require.Error(t, err)
}

func TestPostTaskPushesCurrentScores(t *testing.T) {
	f := twoMigrationFixture(models.MigrationStatusAwaitingReview)

	require.NoError(t, f.service.HandleScoreReceived(context.Background(), "m-1", dto.ScoredMessage{
		CWID: "S1", FinalScore: 88, SubmissionStatus: models.SubmissionStatusOnTime,
	}))
	require.NoError(t, f.service.HandleScoreReceived(context.Background(), "m-1", dto.ScoredMessage{
		CWID: "S2", FinalScore: 92, SubmissionStatus: models.SubmissionStatusOnTime,
	}))

	require.NoError(t, f.service.postMigrationScores(context.Background(), "m-1", 900, 11))
	require.Len(t, f.gradebook.posts, 1)
	assert.Equal(t, 2, f.gradebook.posts[0])
}
