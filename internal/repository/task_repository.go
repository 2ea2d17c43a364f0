package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// TaskRepository persists background task records.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, created_by, name, type, status, status_message, submitted_time, completed_time, payload`

// Create inserts a new task record with generated defaults.
func (r *TaskRepository) Create(ctx context.Context, task *models.TaskRecord) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusCreated
	}
	if task.SubmittedTime.IsZero() {
		task.SubmittedTime = time.Now().UTC()
	}
	const query = `INSERT INTO task_records (id, created_by, name, type, status, status_message, submitted_time, completed_time, payload)
VALUES (:id, :created_by, :name, :type, :status, :status_message, :submitted_time, :completed_time, :payload)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task record: %w", err)
	}
	return nil
}

// GetByID returns a task row by its identifier.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.TaskRecord, error) {
	const query = `SELECT ` + taskColumns + ` FROM task_records WHERE id = $1`
	var task models.TaskRecord
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, fmt.Errorf("get task record: %w", err)
	}
	return &task, nil
}

// GetByIDForOwner returns a task row only when it belongs to the given user.
func (r *TaskRepository) GetByIDForOwner(ctx context.Context, id, cwid string) (*models.TaskRecord, error) {
	const query = `SELECT ` + taskColumns + ` FROM task_records WHERE id = $1 AND created_by = $2`
	var task models.TaskRecord
	if err := r.db.GetContext(ctx, &task, query, id, cwid); err != nil {
		return nil, fmt.Errorf("get task record for owner: %w", err)
	}
	return &task, nil
}

// ListByOwner returns the requesting user's tasks, newest first.
func (r *TaskRepository) ListByOwner(ctx context.Context, cwid string) ([]models.TaskRecord, error) {
	const query = `SELECT ` + taskColumns + ` FROM task_records WHERE created_by = $1 ORDER BY submitted_time DESC`
	var tasks []models.TaskRecord
	if err := r.db.SelectContext(ctx, &tasks, query, cwid); err != nil {
		return nil, fmt.Errorf("list task records: %w", err)
	}
	return tasks, nil
}

// GetStatus returns just the status column for dependency polling.
func (r *TaskRepository) GetStatus(ctx context.Context, id string) (models.TaskStatus, error) {
	const query = `SELECT status FROM task_records WHERE id = $1`
	var status models.TaskStatus
	if err := r.db.GetContext(ctx, &status, query, id); err != nil {
		return "", fmt.Errorf("get task status: %w", err)
	}
	return status, nil
}

// SetStatus updates the lifecycle status, optionally recording a message.
func (r *TaskRepository) SetStatus(ctx context.Context, id string, status models.TaskStatus, message *string) error {
	const query = `UPDATE task_records SET status = $1, status_message = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, message, id); err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	return nil
}

// SetCompletedTime stamps the terminal completion time.
func (r *TaskRepository) SetCompletedTime(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE task_records SET completed_time = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("set task completed time: %w", err)
	}
	return nil
}
