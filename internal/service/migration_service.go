package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow-api/internal/dto"
	"github.com/gradeflow/gradeflow-api/internal/models"
	"github.com/gradeflow/gradeflow-api/pkg/errors"
)

// Actor recorded on ledger entries produced by asynchronous engine callbacks.
const scoringEngineActor = "scoring-engine"

const zeroedBaselineMessage = "Zeroed baseline prior to score processing."

// MigrationStore is the migration persistence slice the coordinator needs.
type MigrationStore interface {
	Create(ctx context.Context, m *models.Migration) error
	GetByID(ctx context.Context, id string) (*models.Migration, error)
	ListByMaster(ctx context.Context, masterMigrationID string) ([]models.Migration, error)
	SetPolicy(ctx context.Context, id string, policyID *string) error
}

// MasterMigrationStore persists grading cycle aggregates.
type MasterMigrationStore interface {
	Create(ctx context.Context, m *models.MasterMigration) error
	GetByID(ctx context.Context, id string) (*models.MasterMigration, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.MasterMigration, error)
	UpdateStatusIf(ctx context.Context, id string, from, to models.MigrationStatus) (bool, error)
	Delete(ctx context.Context, id string) error
}

// TransactionLog is the append-only score ledger.
type TransactionLog interface {
	Append(ctx context.Context, entry *models.TransactionLogEntry) error
	ListByMigration(ctx context.Context, migrationID string) ([]models.TransactionLogEntry, error)
	ListByStudent(ctx context.Context, migrationID, cwid string) ([]models.TransactionLogEntry, error)
	ListCurrent(ctx context.Context, migrationID string) ([]models.TransactionLogEntry, error)
}

// RawScoreReader reads imported raw scores.
type RawScoreReader interface {
	ListByMigration(ctx context.Context, migrationID string) ([]models.RawScore, error)
}

// PolicyStore reads policies and maintains their usage counters.
type PolicyStore interface {
	GetByID(ctx context.Context, id string) (*models.Policy, error)
	IncrementUsage(ctx context.Context, id string) error
	DecrementUsage(ctx context.Context, id string) error
}

// CourseStore reads course, membership and assignment data.
type CourseStore interface {
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	GetCourseForMigration(ctx context.Context, migrationID string) (*models.Course, error)
	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	ListStudents(ctx context.Context, courseID string) ([]models.CourseMember, error)
	FindMember(ctx context.Context, courseID, cwid string) (*models.CourseMember, error)
}

// LateRequestStore reads extension requests.
type LateRequestStore interface {
	GetByID(ctx context.Context, id string) (*models.LateRequest, error)
	MapByAssignment(ctx context.Context, assignmentID string) (map[string]models.LateRequest, error)
}

// TaskSubmitter hands jobs to the orchestrator.
type TaskSubmitter interface {
	Submit(ctx context.Context, job *SubmittedJob) (*models.TaskRecord, error)
}

// GradingAnnouncer tells the scoring engine to begin grading one migration.
type GradingAnnouncer interface {
	AnnounceGradingStart(ctx context.Context, msg dto.GradingStartMessage) error
}

// GradebookPublisher pushes reviewed scores to the external gradebook.
type GradebookPublisher interface {
	PostScores(ctx context.Context, gradebookCourseID, gradebookAssignmentID int64, scores []dto.GradebookScoreEntry) error
}

// ScoreMetrics counts scores crossing the engine boundary.
type ScoreMetrics interface {
	ObserveScorePublished(migrationID string)
	ObserveScoreReceived(migrationID string)
}

// MigrationServiceDeps bundles the coordinator's collaborators.
type MigrationServiceDeps struct {
	Masters      MasterMigrationStore
	Migrations   MigrationStore
	Log          TransactionLog
	RawScores    RawScoreReader
	Policies     PolicyStore
	Courses      CourseStore
	LateRequests LateRequestStore
	Tasks        TaskSubmitter
	Channels     *ScoreChannelFactory
	Engine       GradingAnnouncer
	Gradebook    GradebookPublisher
	Metrics      ScoreMetrics
	Logger       *zap.Logger
}

// MigrationService is the workflow coordinator. It owns the master migration
// state machine, fans background work out through the orchestrator, consumes
// computed scores into the transaction log and drives final publication.
type MigrationService struct {
	masters      MasterMigrationStore
	migrations   MigrationStore
	log          TransactionLog
	rawScores    RawScoreReader
	policies     PolicyStore
	courses      CourseStore
	lateRequests LateRequestStore
	tasks        TaskSubmitter
	channels     *ScoreChannelFactory
	engine       GradingAnnouncer
	gradebook    GradebookPublisher
	metrics      ScoreMetrics
	logger       *zap.Logger

	mu   sync.Mutex
	live map[string]*ScoreChannelSet // keyed by migration id
}

// NewMigrationService constructs the coordinator.
func NewMigrationService(deps MigrationServiceDeps) *MigrationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationService{
		masters:      deps.Masters,
		migrations:   deps.Migrations,
		log:          deps.Log,
		rawScores:    deps.RawScores,
		policies:     deps.Policies,
		courses:      deps.Courses,
		lateRequests: deps.LateRequests,
		tasks:        deps.Tasks,
		channels:     deps.Channels,
		engine:       deps.Engine,
		gradebook:    deps.Gradebook,
		metrics:      deps.Metrics,
		logger:       logger,
		live:         make(map[string]*ScoreChannelSet),
	}
}

// CreateMasterMigration opens a new grading cycle for a course.
func (s *MigrationService) CreateMasterMigration(ctx context.Context, courseID, createdBy string) (*models.MasterMigration, error) {
	if _, err := s.courses.GetCourse(ctx, courseID); err != nil {
		return nil, asNotFound(err, "course not found")
	}
	master := &models.MasterMigration{CourseID: courseID, CreatedBy: createdBy}
	if err := s.masters.Create(ctx, master); err != nil {
		return nil, err
	}
	s.logger.Sugar().Infow("master migration created", "master_migration_id", master.ID, "course_id", courseID)
	return master, nil
}

// GetMasterMigration loads the aggregate with its child migrations.
func (s *MigrationService) GetMasterMigration(ctx context.Context, id string) (*models.MasterMigration, error) {
	master, err := s.masters.GetByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "master migration not found")
	}
	children, err := s.migrations.ListByMaster(ctx, id)
	if err != nil {
		return nil, err
	}
	master.Migrations = children
	return master, nil
}

// ListMasterMigrations lists all grading cycles for a course.
func (s *MigrationService) ListMasterMigrations(ctx context.Context, courseID string) ([]models.MasterMigration, error) {
	return s.masters.ListByCourse(ctx, courseID)
}

// DeleteMasterMigration removes a cycle that has not started loading yet and
// releases any policy references held by its children.
func (s *MigrationService) DeleteMasterMigration(ctx context.Context, id string) error {
	master, err := s.masters.GetByID(ctx, id)
	if err != nil {
		return asNotFound(err, "master migration not found")
	}
	if master.Status != models.MigrationStatusCreated {
		return transitionError("delete", master.Status, models.MigrationStatusCreated)
	}
	children, err := s.migrations.ListByMaster(ctx, id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.PolicyID != nil {
			if err := s.policies.DecrementUsage(ctx, *child.PolicyID); err != nil {
				return err
			}
		}
	}
	return s.masters.Delete(ctx, id)
}

// AddMigration attaches an assignment to a cycle. Only legal before loading.
func (s *MigrationService) AddMigration(ctx context.Context, masterMigrationID, assignmentID string) (*models.Migration, error) {
	master, err := s.masters.GetByID(ctx, masterMigrationID)
	if err != nil {
		return nil, asNotFound(err, "master migration not found")
	}
	if master.Status != models.MigrationStatusCreated {
		return nil, transitionError("add migration", master.Status, models.MigrationStatusCreated)
	}
	if _, err := s.courses.GetAssignment(ctx, assignmentID); err != nil {
		return nil, asNotFound(err, "assignment not found")
	}
	migration := &models.Migration{MasterMigrationID: masterMigrationID, AssignmentID: assignmentID}
	if err := s.migrations.Create(ctx, migration); err != nil {
		return nil, err
	}
	return migration, nil
}

// SetPolicy swaps a migration's late policy, keeping the per-policy usage
// counters current. The counter writes are individual statements, not one
// transaction with the assignment itself.
func (s *MigrationService) SetPolicy(ctx context.Context, migrationID, policyID string) (*models.Migration, error) {
	migration, err := s.migrations.GetByID(ctx, migrationID)
	if err != nil {
		return nil, asNotFound(err, "migration not found")
	}
	policy, err := s.policies.GetByID(ctx, policyID)
	if err != nil {
		return nil, asNotFound(err, "policy not found")
	}

	if migration.PolicyID != nil {
		if *migration.PolicyID == policy.ID {
			return migration, nil
		}
		if err := s.policies.DecrementUsage(ctx, *migration.PolicyID); err != nil {
			return nil, err
		}
	}
	if err := s.migrations.SetPolicy(ctx, migrationID, &policy.ID); err != nil {
		return nil, err
	}
	if err := s.policies.IncrementUsage(ctx, policy.ID); err != nil {
		return nil, err
	}
	migration.PolicyID = &policy.ID
	return migration, nil
}

// ValidateLoad checks every child migration has raw scores PRESENT, then
// advances CREATED to LOADED.
func (s *MigrationService) ValidateLoad(ctx context.Context, masterMigrationID string) (*models.MasterMigration, error) {
	master, err := s.masters.GetByID(ctx, masterMigrationID)
	if err != nil {
		return nil, asNotFound(err, "master migration not found")
	}
	children, err := s.migrations.ListByMaster(ctx, masterMigrationID)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, errors.Clone(errors.ErrValidation, "master migration has no migrations to load")
	}
	var missing []string
	for _, child := range children {
		if child.RawScoreStatus != models.RawScoreStatusPresent {
			missing = append(missing, child.AssignmentID)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Clone(errors.ErrValidation,
			fmt.Sprintf("raw scores are not present for assignments: %s", strings.Join(missing, ", ")))
	}

	ok, err := s.masters.UpdateStatusIf(ctx, masterMigrationID, models.MigrationStatusCreated, models.MigrationStatusLoaded)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.currentTransitionError(ctx, masterMigrationID, "load", models.MigrationStatusCreated)
	}
	master.Status = models.MigrationStatusLoaded
	master.Migrations = children
	return master, nil
}

// StartProcessing advances LOADED to STARTED and fans out one zero-out task
// plus one dependent process-scores task per child migration.
func (s *MigrationService) StartProcessing(ctx context.Context, masterMigrationID, actor string) ([]models.TaskRecord, error) {
	children, err := s.migrations.ListByMaster(ctx, masterMigrationID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.PolicyID == nil {
			return nil, errors.Clone(errors.ErrValidation,
				fmt.Sprintf("migration %s has no policy assigned", child.ID))
		}
	}

	ok, err := s.masters.UpdateStatusIf(ctx, masterMigrationID, models.MigrationStatusLoaded, models.MigrationStatusStarted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.currentTransitionError(ctx, masterMigrationID, "start processing", models.MigrationStatusLoaded)
	}

	tasks := make([]models.TaskRecord, 0, len(children)*2)
	for _, child := range children {
		child := child

		zeroTask, err := s.tasks.Submit(ctx, &SubmittedJob{
			Task: &models.TaskRecord{
				CreatedBy: actor,
				Name:      fmt.Sprintf("Zero out submissions for migration %s", child.ID),
				Type:      models.TaskTypeZeroOutScores,
				Payload:   models.TaskPayload{ZeroOutScores: &models.ZeroOutScoresPayload{MigrationID: child.ID}},
			},
			Phases: JobPhases{
				Run: func(jobCtx context.Context) error {
					return s.zeroOutSubmissions(jobCtx, child.ID, actor)
				},
			},
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *zeroTask)

		policy, err := s.policies.GetByID(ctx, *child.PolicyID)
		if err != nil {
			return nil, asNotFound(err, "policy not found")
		}

		processTask, err := s.tasks.Submit(ctx, &SubmittedJob{
			Task: &models.TaskRecord{
				CreatedBy: actor,
				Name:      fmt.Sprintf("Process scores and extensions for migration %s", child.ID),
				Type:      models.TaskTypeProcessScores,
				Payload: models.TaskPayload{ProcessScores: &models.ProcessScoresPayload{
					MigrationID:  child.ID,
					AssignmentID: child.AssignmentID,
					PolicyURI:    policy.URI,
				}},
			},
			DependsOn: []string{zeroTask.ID},
			Phases: JobPhases{
				OnStart: func(jobCtx context.Context) error {
					return s.openScoreChannels(jobCtx, child.ID, policy.URI)
				},
				Run: func(jobCtx context.Context) error {
					return s.publishRawScores(jobCtx, child.ID, child.AssignmentID)
				},
			},
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *processTask)
	}

	s.logger.Sugar().Infow("processing started",
		"master_migration_id", masterMigrationID,
		"migrations", len(children),
		"tasks", len(tasks),
	)
	return tasks, nil
}

// openScoreChannels builds the migration's channel pair and announces the
// grading run to the engine. Runs as a process-scores onStart phase.
func (s *MigrationService) openScoreChannels(ctx context.Context, migrationID, policyURI string) error {
	migration, err := s.migrations.GetByID(ctx, migrationID)
	if err != nil {
		return err
	}
	assignment, err := s.courses.GetAssignment(ctx, migration.AssignmentID)
	if err != nil {
		return err
	}

	set, err := s.channels.ForMigration(migrationID).
		WithPolicy(policyURI).
		WithMetadata(&dto.AssignmentMetadata{
			AssignmentID:   assignment.ID,
			MaxScore:       assignment.Points,
			MinScore:       0,
			InitialDueDate: assignment.DueDate,
		}).
		WithOnScoreReceived(func(msg dto.ScoredMessage) {
			if err := s.HandleScoreReceived(context.Background(), migrationID, msg); err != nil {
				s.logger.Sugar().Errorw("failed to record received score",
					"migration_id", migrationID, "cwid", msg.CWID, "error", err)
			}
		}).
		Build(ctx)
	if err != nil {
		return err
	}

	if err := s.engine.AnnounceGradingStart(ctx, set.StartMessage()); err != nil {
		if closeErr := set.Close(); closeErr != nil {
			s.logger.Sugar().Warnw("failed to close score channels after announce failure",
				"migration_id", migrationID, "error", closeErr)
		}
		return fmt.Errorf("announce grading start for migration %s: %w", migrationID, err)
	}

	s.mu.Lock()
	s.live[migrationID] = set
	s.mu.Unlock()
	return nil
}

// publishRawScores streams every stored raw score to the engine. Students no
// longer enrolled in the course are skipped with a warning.
func (s *MigrationService) publishRawScores(ctx context.Context, migrationID, assignmentID string) error {
	s.mu.Lock()
	set := s.live[migrationID]
	s.mu.Unlock()
	if set == nil {
		return fmt.Errorf("score channels not open for migration %s", migrationID)
	}

	course, err := s.courses.GetCourseForMigration(ctx, migrationID)
	if err != nil {
		return err
	}
	students, err := s.courses.ListStudents(ctx, course.ID)
	if err != nil {
		return err
	}
	enrolled := make(map[string]struct{}, len(students))
	for _, member := range students {
		enrolled[member.CWID] = struct{}{}
	}

	lateRequests, err := s.lateRequests.MapByAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	scores, err := s.rawScores.ListByMigration(ctx, migrationID)
	if err != nil {
		return err
	}

	published := 0
	for _, raw := range scores {
		if _, ok := enrolled[raw.CWID]; !ok {
			s.logger.Sugar().Warnw("skipping raw score for student not enrolled in course",
				"migration_id", migrationID, "cwid", raw.CWID)
			continue
		}

		msg := dto.RawGradeMessage{
			CWID:             raw.CWID,
			SubmissionDate:   raw.SubmissionTime,
			SubmissionStatus: raw.SubmissionStatus,
		}
		if raw.Score != nil {
			msg.RawScore = *raw.Score
		}
		if lr, ok := lateRequests[raw.CWID]; ok {
			lr := lr
			msg.ExtensionID = &lr.ID
			msg.ExtensionDate = lr.ExtensionDate
			msg.ExtensionDays = &lr.DaysRequested
			msg.ExtensionType = &lr.RequestType
			msg.ExtensionStatus = &lr.Status
		}

		if err := set.PublishRawGrade(ctx, msg); err != nil {
			return err
		}
		published++
		if s.metrics != nil {
			s.metrics.ObserveScorePublished(migrationID)
		}
	}

	s.logger.Sugar().Infow("raw scores published",
		"migration_id", migrationID, "published", published, "stored", len(scores))
	return nil
}

// zeroOutSubmissions appends a zero/MISSING baseline entry for every enrolled
// student so unsubmitted work still receives a grade.
func (s *MigrationService) zeroOutSubmissions(ctx context.Context, migrationID, actor string) error {
	course, err := s.courses.GetCourseForMigration(ctx, migrationID)
	if err != nil {
		return err
	}
	students, err := s.courses.ListStudents(ctx, course.ID)
	if err != nil {
		return err
	}

	message := zeroedBaselineMessage
	for _, member := range students {
		entry := &models.TransactionLogEntry{
			MigrationID:      migrationID,
			CWID:             member.CWID,
			GradebookID:      member.GradebookID,
			Score:            0,
			SubmissionStatus: models.SubmissionStatusMissing,
			Message:          &message,
			PerformedBy:      actor,
		}
		if err := s.log.Append(ctx, entry); err != nil {
			return err
		}
	}
	s.logger.Sugar().Infow("submissions zeroed out", "migration_id", migrationID, "students", len(students))
	return nil
}

// HandleScoreReceived records one computed score from the engine as a new
// ledger revision. Safe to call repeatedly for the same student; every call
// appends a higher revision.
func (s *MigrationService) HandleScoreReceived(ctx context.Context, migrationID string, msg dto.ScoredMessage) error {
	course, err := s.courses.GetCourseForMigration(ctx, migrationID)
	if err != nil {
		return err
	}
	member, err := s.courses.FindMember(ctx, course.ID, msg.CWID)
	if err != nil {
		return err
	}
	if member == nil {
		s.logger.Sugar().Warnw("dropping score for student not enrolled in course",
			"migration_id", migrationID, "cwid", msg.CWID)
		return nil
	}

	applied := msg.ExtensionStatus == models.ExtensionStatusApplied

	var lateRequest *models.LateRequest
	if msg.ExtensionID != nil {
		lateRequest, err = s.lateRequests.GetByID(ctx, *msg.ExtensionID)
		if err != nil {
			return err
		}
	}

	var parts []string
	if applied {
		note := "Extension applied."
		if lateRequest != nil {
			note = fmt.Sprintf("Extension %q applied for %g day(s).", lateRequest.RequestType, lateRequest.DaysRequested)
		}
		parts = append(parts, note)
	}
	if lateRequest != nil && lateRequest.ReviewerResponse != nil {
		if response := strings.TrimSpace(*lateRequest.ReviewerResponse); response != "" {
			parts = append(parts, response)
		}
	}
	if msg.ExtensionMessage != nil && *msg.ExtensionMessage != "" {
		parts = append(parts, *msg.ExtensionMessage)
	}
	if msg.SubmissionMessage != nil && *msg.SubmissionMessage != "" {
		parts = append(parts, *msg.SubmissionMessage)
	}

	entry := &models.TransactionLogEntry{
		MigrationID:      migrationID,
		CWID:             msg.CWID,
		GradebookID:      member.GradebookID,
		Score:            msg.FinalScore,
		SubmissionStatus: msg.SubmissionStatus,
		ExtensionID:      msg.ExtensionID,
		ExtensionApplied: applied,
		SubmissionTime:   msg.AdjustedSubmissionTime,
		PerformedBy:      scoringEngineActor,
	}
	if len(parts) > 0 {
		explanation := strings.Join(parts, " ")
		entry.Message = &explanation
	}

	if err := s.log.Append(ctx, entry); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveScoreReceived(migrationID)
	}
	s.logger.Sugar().Debugw("score recorded",
		"migration_id", migrationID, "cwid", msg.CWID, "revision", entry.Revision, "score", entry.Score)
	return nil
}

// GetMigrationsToReview returns the current per-student values for every
// child migration. Reading the review data is what moves a STARTED cycle to
// AWAITING_REVIEW.
func (s *MigrationService) GetMigrationsToReview(ctx context.Context, masterMigrationID string) ([]dto.MigrationWithScores, error) {
	master, err := s.masters.GetByID(ctx, masterMigrationID)
	if err != nil {
		return nil, asNotFound(err, "master migration not found")
	}
	switch master.Status {
	case models.MigrationStatusStarted:
		if _, err := s.masters.UpdateStatusIf(ctx, masterMigrationID, models.MigrationStatusStarted, models.MigrationStatusAwaitingReview); err != nil {
			return nil, err
		}
	case models.MigrationStatusAwaitingReview:
	default:
		return nil, transitionError("review", master.Status, models.MigrationStatusStarted)
	}

	children, err := s.migrations.ListByMaster(ctx, masterMigrationID)
	if err != nil {
		return nil, err
	}

	result := make([]dto.MigrationWithScores, 0, len(children))
	for _, child := range children {
		assignment, err := s.courses.GetAssignment(ctx, child.AssignmentID)
		if err != nil {
			return nil, err
		}
		current, err := s.log.ListCurrent(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		raw, err := s.rawScores.ListByMigration(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		rawByCWID := make(map[string]models.RawScore, len(raw))
		for _, r := range raw {
			rawByCWID[r.CWID] = r
		}

		scores := make([]dto.StudentScore, 0, len(current))
		for _, entry := range current {
			score := dto.StudentScore{
				CWID:           entry.CWID,
				Score:          entry.Score,
				Status:         entry.SubmissionStatus,
				SubmissionDate: entry.SubmissionTime,
				Comment:        entry.Message,
				Revision:       entry.Revision,
			}
			if r, ok := rawByCWID[entry.CWID]; ok {
				if r.Score != nil {
					score.RawScore = *r.Score
				}
				if r.HoursLate != nil {
					score.DaysLate = int(math.Ceil(*r.HoursLate / 24))
				}
			}
			scores = append(scores, score)
		}

		result = append(result, dto.MigrationWithScores{
			MigrationID:  child.ID,
			AssignmentID: child.AssignmentID,
			Assignment:   assignment.Name,
			Scores:       scores,
		})
	}
	return result, nil
}

// OverrideScore appends a manual instructor correction as a new revision.
// Only legal while the cycle is awaiting review.
func (s *MigrationService) OverrideScore(ctx context.Context, masterMigrationID, migrationID, actor string, req dto.ScoreChangeRequest) (*models.TransactionLogEntry, error) {
	master, err := s.masters.GetByID(ctx, masterMigrationID)
	if err != nil {
		return nil, asNotFound(err, "master migration not found")
	}
	if master.Status != models.MigrationStatusAwaitingReview {
		return nil, transitionError("override score", master.Status, models.MigrationStatusAwaitingReview)
	}

	course, err := s.courses.GetCourseForMigration(ctx, migrationID)
	if err != nil {
		return nil, err
	}
	member, err := s.courses.FindMember(ctx, course.ID, req.CWID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, errors.Clone(errors.ErrNotFound, fmt.Sprintf("student %s is not enrolled in the course", req.CWID))
	}

	justification := strings.TrimSpace(req.Justification)
	if justification == "" {
		return nil, errors.Clone(errors.ErrValidation, "a justification is required to override a score")
	}

	entry := &models.TransactionLogEntry{
		MigrationID:      migrationID,
		CWID:             req.CWID,
		GradebookID:      member.GradebookID,
		Score:            req.NewScore,
		SubmissionStatus: models.SubmissionStatus(req.SubmissionStatus),
		SubmissionTime:   req.AdjustedSubmissionDate,
		Message:          &justification,
		PerformedBy:      actor,
	}
	if err := s.log.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// FinalizeReview advances AWAITING_REVIEW to READY_TO_POST and tears down
// the engine channels; no further scores are accepted after this point.
func (s *MigrationService) FinalizeReview(ctx context.Context, masterMigrationID string) (*models.MasterMigration, error) {
	ok, err := s.masters.UpdateStatusIf(ctx, masterMigrationID, models.MigrationStatusAwaitingReview, models.MigrationStatusReadyToPost)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.currentTransitionError(ctx, masterMigrationID, "finalize review", models.MigrationStatusAwaitingReview)
	}
	s.closeChannelsForMaster(ctx, masterMigrationID)
	return s.GetMasterMigration(ctx, masterMigrationID)
}

// StartPost advances READY_TO_POST to POSTING and spawns one gradebook post
// task per child migration.
func (s *MigrationService) StartPost(ctx context.Context, masterMigrationID, actor string) ([]models.TaskRecord, error) {
	ok, err := s.masters.UpdateStatusIf(ctx, masterMigrationID, models.MigrationStatusReadyToPost, models.MigrationStatusPosting)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.currentTransitionError(ctx, masterMigrationID, "post", models.MigrationStatusReadyToPost)
	}

	children, err := s.migrations.ListByMaster(ctx, masterMigrationID)
	if err != nil {
		return nil, err
	}

	tasks := make([]models.TaskRecord, 0, len(children))
	for _, child := range children {
		child := child

		course, err := s.courses.GetCourseForMigration(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		assignment, err := s.courses.GetAssignment(ctx, child.AssignmentID)
		if err != nil {
			return nil, err
		}

		task, err := s.tasks.Submit(ctx, &SubmittedJob{
			Task: &models.TaskRecord{
				CreatedBy: actor,
				Name:      fmt.Sprintf("Post scores to gradebook for migration %s", child.ID),
				Type:      models.TaskTypePostToGradebook,
				Payload: models.TaskPayload{PostToGradebook: &models.PostToGradebookPayload{
					MigrationID:           child.ID,
					GradebookCourseID:     course.GradebookCourseID,
					GradebookAssignmentID: assignment.GradebookAssignmentID,
				}},
			},
			Phases: JobPhases{
				Run: func(jobCtx context.Context) error {
					return s.postMigrationScores(jobCtx, child.ID, course.GradebookCourseID, assignment.GradebookAssignmentID)
				},
			},
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

// postMigrationScores pushes the current ledger values for one migration to
// the gradebook.
func (s *MigrationService) postMigrationScores(ctx context.Context, migrationID string, gradebookCourseID, gradebookAssignmentID int64) error {
	current, err := s.log.ListCurrent(ctx, migrationID)
	if err != nil {
		return err
	}
	entries := make([]dto.GradebookScoreEntry, 0, len(current))
	for _, entry := range current {
		entries = append(entries, dto.GradebookScoreEntry{
			GradebookUserID:  entry.GradebookID,
			Score:            entry.Score,
			SubmissionStatus: entry.SubmissionStatus,
			SubmissionTime:   entry.SubmissionTime,
			Comment:          entry.Message,
		})
	}
	if err := s.gradebook.PostScores(ctx, gradebookCourseID, gradebookAssignmentID, entries); err != nil {
		return fmt.Errorf("post scores for migration %s: %w", migrationID, err)
	}
	s.logger.Sugar().Infow("scores posted to gradebook", "migration_id", migrationID, "students", len(entries))
	return nil
}

// FinalizePost advances POSTING to COMPLETED.
func (s *MigrationService) FinalizePost(ctx context.Context, masterMigrationID string) (*models.MasterMigration, error) {
	ok, err := s.masters.UpdateStatusIf(ctx, masterMigrationID, models.MigrationStatusPosting, models.MigrationStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.currentTransitionError(ctx, masterMigrationID, "finalize post", models.MigrationStatusPosting)
	}
	return s.GetMasterMigration(ctx, masterMigrationID)
}

func (s *MigrationService) closeChannelsForMaster(ctx context.Context, masterMigrationID string) {
	children, err := s.migrations.ListByMaster(ctx, masterMigrationID)
	if err != nil {
		s.logger.Sugar().Warnw("failed to list migrations while closing channels",
			"master_migration_id", masterMigrationID, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, child := range children {
		if set, ok := s.live[child.ID]; ok {
			if err := set.Close(); err != nil {
				s.logger.Sugar().Warnw("failed to close score channels",
					"migration_id", child.ID, "error", err)
			}
			delete(s.live, child.ID)
		}
	}
}

func (s *MigrationService) currentTransitionError(ctx context.Context, masterMigrationID, action string, required models.MigrationStatus) error {
	master, err := s.masters.GetByID(ctx, masterMigrationID)
	if err != nil {
		return asNotFound(err, "master migration not found")
	}
	return transitionError(action, master.Status, required)
}

func transitionError(action string, current, required models.MigrationStatus) error {
	return errors.Clone(errors.ErrValidation,
		fmt.Sprintf("cannot %s: master migration status is %q, expected %q", action, current, required))
}

func asNotFound(err error, message string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.Clone(errors.ErrNotFound, message)
	}
	return err
}
