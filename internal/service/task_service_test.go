package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradeflow/gradeflow-api/internal/models"
	appErrors "github.com/gradeflow/gradeflow-api/pkg/errors"
)

type taskReaderStub struct {
	records []models.TaskRecord
}

func (s *taskReaderStub) GetByIDForOwner(ctx context.Context, id, cwid string) (*models.TaskRecord, error) {
	for i := range s.records {
		if s.records[i].ID == id && s.records[i].CreatedBy == cwid {
			return &s.records[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *taskReaderStub) ListByOwner(ctx context.Context, cwid string) ([]models.TaskRecord, error) {
	var out []models.TaskRecord
	for _, record := range s.records {
		if record.CreatedBy == cwid {
			out = append(out, record)
		}
	}
	return out, nil
}

func TestListForUserScopesToOwner(t *testing.T) {
	reader := &taskReaderStub{records: []models.TaskRecord{
		{ID: "t-1", CreatedBy: "alice", Name: "zero out", Type: models.TaskTypeZeroOutScores, Status: models.TaskStatusCompleted},
		{ID: "t-2", CreatedBy: "bob", Name: "process", Type: models.TaskTypeProcessScores, Status: models.TaskStatusQueued},
		{ID: "t-3", CreatedBy: "alice", Name: "post", Type: models.TaskTypePostToGradebook, Status: models.TaskStatusStarted},
	}}
	service := NewTaskService(reader, nil)

	tasks, err := service.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t-1", tasks[0].ID)
	assert.Equal(t, "t-3", tasks[1].ID)
}

func TestGetForUserReturnsOwnTask(t *testing.T) {
	message := "Dependent task failed."
	reader := &taskReaderStub{records: []models.TaskRecord{
		{ID: "t-1", CreatedBy: "alice", Name: "process", Type: models.TaskTypeProcessScores, Status: models.TaskStatusFailed, StatusMessage: &message},
	}}
	service := NewTaskService(reader, nil)

	task, err := service.GetForUser(context.Background(), "t-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	require.NotNil(t, task.StatusMessage)
	assert.Equal(t, message, *task.StatusMessage)
}

func TestGetForUserHidesForeignTask(t *testing.T) {
	reader := &taskReaderStub{records: []models.TaskRecord{
		{ID: "t-1", CreatedBy: "bob", Name: "process", Type: models.TaskTypeProcessScores, Status: models.TaskStatusQueued},
	}}
	service := NewTaskService(reader, nil)

	_, err := service.GetForUser(context.Background(), "t-1", "alice")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestGetForUserUnknownTask(t *testing.T) {
	service := NewTaskService(&taskReaderStub{}, nil)

	_, err := service.GetForUser(context.Background(), "missing", "alice")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
