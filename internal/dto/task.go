package dto

import (
	"time"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// TaskResponse is the polling surface for background task progress.
type TaskResponse struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Type          models.TaskType   `json:"type"`
	Status        models.TaskStatus `json:"status"`
	StatusMessage *string           `json:"status_message,omitempty"`
	SubmittedTime time.Time         `json:"submitted_time"`
	CompletedTime *time.Time        `json:"completed_time,omitempty"`
}

// TaskFromModel converts a stored record into its API shape.
func TaskFromModel(task *models.TaskRecord) TaskResponse {
	return TaskResponse{
		ID:            task.ID,
		Name:          task.Name,
		Type:          task.Type,
		Status:        task.Status,
		StatusMessage: task.StatusMessage,
		SubmittedTime: task.SubmittedTime,
		CompletedTime: task.CompletedTime,
	}
}
