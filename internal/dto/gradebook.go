package dto

import (
	"time"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// GradebookScoreEntry is one reviewed score published to the external
// gradebook for an assignment.
type GradebookScoreEntry struct {
	GradebookUserID  string                  `json:"gradebook_user_id"`
	Score            float64                 `json:"score"`
	SubmissionStatus models.SubmissionStatus `json:"submission_status"`
	SubmissionTime   *time.Time              `json:"submission_time,omitempty"`
	Comment          *string                 `json:"comment,omitempty"`
}
