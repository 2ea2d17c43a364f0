package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow-api/internal/models"
	"github.com/gradeflow/gradeflow-api/pkg/events"
)

// NewTaskEventAuditor returns a bus handler that writes every task lifecycle
// transition to the audit log. Operators grep these entries to reconstruct
// what the orchestrator did to a migration run.
func NewTaskEventAuditor(logger *zap.Logger) events.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	sugar := logger.Sugar()
	return func(ctx context.Context, event events.Event) {
		task, ok := event.Payload.(*models.TaskRecord)
		if !ok {
			return
		}
		fields := []interface{}{
			"event", event.Name,
			"task_id", task.ID,
			"type", task.Type,
			"status", task.Status,
			"created_by", task.CreatedBy,
		}
		if task.StatusMessage != nil {
			fields = append(fields, "status_message", *task.StatusMessage)
		}
		sugar.Infow("task lifecycle", fields...)
	}
}
