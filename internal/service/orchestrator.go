package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow-api/internal/models"
	"github.com/gradeflow/gradeflow-api/pkg/events"
)

// Status messages recorded on tasks that fail before their job phase runs.
const (
	msgDependentTaskFailed   = "Dependent task failed."
	msgDependencyWaitTimeout = "Too many attempts waiting for dependent tasks to complete."
)

// Event names published by the orchestrator for observers.
const (
	EventTaskQueued    = "task.queued"
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
)

// TaskStore is the slice of task persistence the orchestrator needs.
type TaskStore interface {
	Create(ctx context.Context, task *models.TaskRecord) error
	GetByID(ctx context.Context, id string) (*models.TaskRecord, error)
	GetStatus(ctx context.Context, id string) (models.TaskStatus, error)
	SetStatus(ctx context.Context, id string, status models.TaskStatus, message *string) error
	SetCompletedTime(ctx context.Context, id string, at time.Time) error
}

// TaskMetrics receives lifecycle observations. Implementations must be safe
// for concurrent use.
type TaskMetrics interface {
	ObserveTaskQueued(taskType models.TaskType)
	ObserveTaskFinished(taskType models.TaskType, status models.TaskStatus, duration time.Duration)
}

// JobPhases carries the three execution callbacks of a submitted job. Run is
// required, the hooks are optional. OnStart typically acquires external
// resources (message channels) and OnComplete releases them or advances
// workflow state.
type JobPhases struct {
	OnStart    func(ctx context.Context) error
	Run        func(ctx context.Context) error
	OnComplete func(ctx context.Context) error
}

// SubmittedJob pairs a task record with its executable phases and the ids of
// the tasks that must complete before it may start.
type SubmittedJob struct {
	Task      *models.TaskRecord
	DependsOn []string
	Phases    JobPhases
}

// OrchestratorConfig tunes the worker pool and dependency polling.
type OrchestratorConfig struct {
	Workers            int
	DependencyInterval time.Duration
	DependencyAttempts int
	QueueSize          int
}

// TaskOrchestrator runs submitted jobs on a fixed worker pool. Every state
// change is written through to the task store so the polling API always sees
// the latest status, even across restarts of the callers.
type TaskOrchestrator struct {
	store   TaskStore
	bus     *events.Bus
	metrics TaskMetrics
	logger  *zap.Logger

	workers            int
	dependencyInterval time.Duration
	dependencyAttempts int

	queue  chan *SubmittedJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewTaskOrchestrator constructs an orchestrator. Zero config fields fall
// back to sensible defaults.
func NewTaskOrchestrator(store TaskStore, bus *events.Bus, metrics TaskMetrics, logger *zap.Logger, cfg OrchestratorConfig) *TaskOrchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.DependencyInterval <= 0 {
		cfg.DependencyInterval = 2 * time.Second
	}
	if cfg.DependencyAttempts <= 0 {
		cfg.DependencyAttempts = 10
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskOrchestrator{
		store:              store,
		bus:                bus,
		metrics:            metrics,
		logger:             logger,
		workers:            cfg.Workers,
		dependencyInterval: cfg.DependencyInterval,
		dependencyAttempts: cfg.DependencyAttempts,
		queue:              make(chan *SubmittedJob, cfg.QueueSize),
	}
}

// Start launches the worker pool. Safe to call once.
func (o *TaskOrchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}
	o.started = true
	o.logger.Sugar().Infow("task orchestrator started", "workers", o.workers)
}

// Stop cancels in-flight work and waits for the workers to exit.
func (o *TaskOrchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.cancel()
	o.mu.Unlock()
	o.wg.Wait()
	o.logger.Sugar().Infow("task orchestrator stopped")
}

// Submit persists the task record, marks it queued and hands it to the
// worker pool. The returned record carries the generated id for polling.
func (o *TaskOrchestrator) Submit(ctx context.Context, job *SubmittedJob) (*models.TaskRecord, error) {
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()
	if !started {
		return nil, fmt.Errorf("task orchestrator not started")
	}
	if job.Phases.Run == nil {
		return nil, fmt.Errorf("submitted job %q has no run phase", job.Task.Name)
	}

	if err := o.store.Create(ctx, job.Task); err != nil {
		return nil, err
	}
	if err := o.store.SetStatus(ctx, job.Task.ID, models.TaskStatusQueued, nil); err != nil {
		return nil, err
	}
	job.Task.Status = models.TaskStatusQueued

	select {
	case o.queue <- job:
	case <-o.ctx.Done():
		return nil, fmt.Errorf("task orchestrator stopped: %w", o.ctx.Err())
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if o.metrics != nil {
		o.metrics.ObserveTaskQueued(job.Task.Type)
	}
	o.publishEvent(EventTaskQueued, job.Task)
	o.logger.Sugar().Infow("task queued",
		"task_id", job.Task.ID,
		"type", job.Task.Type,
		"depends_on", job.DependsOn,
	)
	return job.Task, nil
}

func (o *TaskOrchestrator) worker(id int) {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case job := <-o.queue:
			o.execute(job)
		}
	}
}

func (o *TaskOrchestrator) execute(job *SubmittedJob) {
	ctx := o.ctx
	task := job.Task
	startedAt := time.Now()

	if len(job.DependsOn) > 0 {
		if msg, ok := o.awaitDependencies(ctx, job.DependsOn); !ok {
			o.finishFailed(ctx, task, msg, startedAt)
			return
		}
	}

	// reload so the phases observe the stored record, not the snapshot
	// captured at submission time
	if fresh, err := o.store.GetByID(ctx, task.ID); err != nil {
		o.logger.Sugar().Warnw("failed to reload task before run", "task_id", task.ID, "error", err)
	} else {
		*task = *fresh
	}

	if err := o.store.SetStatus(ctx, task.ID, models.TaskStatusStarted, nil); err != nil {
		o.logger.Sugar().Errorw("failed to mark task started", "task_id", task.ID, "error", err)
	}
	task.Status = models.TaskStatusStarted

	if err := o.runPhases(ctx, job); err != nil {
		o.finishFailed(ctx, task, err.Error(), startedAt)
		return
	}
	o.finishCompleted(ctx, task, startedAt)
}

// awaitDependencies polls dependency statuses at the configured interval. It
// returns ok=false with a status message when a dependency failed, cannot be
// resolved, or did not complete within the attempt budget.
func (o *TaskOrchestrator) awaitDependencies(ctx context.Context, dependsOn []string) (string, bool) {
	for attempt := 0; attempt < o.dependencyAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return msgDependencyWaitTimeout, false
			case <-time.After(o.dependencyInterval):
			}
		}

		allComplete := true
		for _, depID := range dependsOn {
			status, err := o.store.GetStatus(ctx, depID)
			if err != nil {
				if !stderrors.Is(err, sql.ErrNoRows) {
					// transient store error: burn an attempt, not the task
					o.logger.Sugar().Warnw("failed to read dependency status",
						"dependency_id", depID, "error", err)
					allComplete = false
					continue
				}
				// unresolvable dependencies can never complete
				status = models.TaskStatusMissing
			}
			switch status {
			case models.TaskStatusFailed, models.TaskStatusMissing:
				return msgDependentTaskFailed, false
			case models.TaskStatusCompleted:
			default:
				allComplete = false
			}
		}
		if allComplete {
			return "", true
		}
	}
	return msgDependencyWaitTimeout, false
}

// runPhases drives onStart, run and onComplete in order, stopping at the
// first error. Panics in any phase are converted to job failures so a bad
// job cannot take a worker down.
func (o *TaskOrchestrator) runPhases(ctx context.Context, job *SubmittedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	if job.Phases.OnStart != nil {
		if err := job.Phases.OnStart(ctx); err != nil {
			return fmt.Errorf("failed to run 'onStart' for task %q: %w", job.Task.Name, err)
		}
	}
	if err := job.Phases.Run(ctx); err != nil {
		return fmt.Errorf("failed to run 'run' for task %q: %w", job.Task.Name, err)
	}
	if job.Phases.OnComplete != nil {
		if err := job.Phases.OnComplete(ctx); err != nil {
			return fmt.Errorf("failed to run 'onComplete' for task %q: %w", job.Task.Name, err)
		}
	}
	return nil
}

func (o *TaskOrchestrator) finishCompleted(ctx context.Context, task *models.TaskRecord, startedAt time.Time) {
	now := time.Now().UTC()
	if err := o.store.SetStatus(ctx, task.ID, models.TaskStatusCompleted, nil); err != nil {
		o.logger.Sugar().Errorw("failed to mark task completed", "task_id", task.ID, "error", err)
	}
	if err := o.store.SetCompletedTime(ctx, task.ID, now); err != nil {
		o.logger.Sugar().Errorw("failed to stamp task completion", "task_id", task.ID, "error", err)
	}
	task.Status = models.TaskStatusCompleted
	task.CompletedTime = &now

	if o.metrics != nil {
		o.metrics.ObserveTaskFinished(task.Type, models.TaskStatusCompleted, time.Since(startedAt))
	}
	o.publishEvent(EventTaskCompleted, task)
	o.logger.Sugar().Infow("task completed", "task_id", task.ID, "type", task.Type)
}

func (o *TaskOrchestrator) finishFailed(ctx context.Context, task *models.TaskRecord, message string, startedAt time.Time) {
	if err := o.store.SetStatus(ctx, task.ID, models.TaskStatusFailed, &message); err != nil {
		o.logger.Sugar().Errorw("failed to mark task failed", "task_id", task.ID, "error", err)
	}
	task.Status = models.TaskStatusFailed
	task.StatusMessage = &message

	if o.metrics != nil {
		o.metrics.ObserveTaskFinished(task.Type, models.TaskStatusFailed, time.Since(startedAt))
	}
	o.publishEvent(EventTaskFailed, task)
	o.logger.Sugar().Warnw("task failed", "task_id", task.ID, "type", task.Type, "message", message)
}

func (o *TaskOrchestrator) publishEvent(name string, task *models.TaskRecord) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(events.Event{Name: name, Payload: task}); err != nil {
		o.logger.Sugar().Warnw("failed to publish task event", "event", name, "task_id", task.ID, "error", err)
	}
}
