package service

import (
	"context"
	"database/sql"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow-api/internal/dto"
	"github.com/gradeflow/gradeflow-api/internal/models"
	"github.com/gradeflow/gradeflow-api/pkg/errors"
)

// TaskReader is the owner-scoped read slice of task persistence.
type TaskReader interface {
	GetByIDForOwner(ctx context.Context, id, cwid string) (*models.TaskRecord, error)
	ListByOwner(ctx context.Context, cwid string) ([]models.TaskRecord, error)
}

// TaskService exposes task polling to API callers. All reads are scoped to
// the requesting user; another user's task is indistinguishable from a
// missing one.
type TaskService struct {
	tasks  TaskReader
	logger *zap.Logger
}

// NewTaskService constructs the service.
func NewTaskService(tasks TaskReader, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{tasks: tasks, logger: logger}
}

// ListForUser returns the caller's tasks, newest first.
func (s *TaskService) ListForUser(ctx context.Context, cwid string) ([]dto.TaskResponse, error) {
	records, err := s.tasks.ListByOwner(ctx, cwid)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.TaskResponse, 0, len(records))
	for i := range records {
		responses = append(responses, dto.TaskFromModel(&records[i]))
	}
	return responses, nil
}

// GetForUser returns one of the caller's tasks by id.
func (s *TaskService) GetForUser(ctx context.Context, id, cwid string) (*dto.TaskResponse, error) {
	record, err := s.tasks.GetByIDForOwner(ctx, id, cwid)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Clone(errors.ErrNotFound, "task not found")
		}
		return nil, err
	}
	response := dto.TaskFromModel(record)
	return &response, nil
}
