package dto

import (
	"time"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// CreateMasterMigrationRequest opens a new grading cycle for a course.
type CreateMasterMigrationRequest struct {
	CourseID string `json:"course_id" binding:"required"`
}

// AddMigrationRequest attaches an assignment to a grading cycle.
type AddMigrationRequest struct {
	AssignmentID string `json:"assignment_id" binding:"required"`
}

// SetPolicyRequest swaps the late policy on a migration.
type SetPolicyRequest struct {
	PolicyID string `json:"policy_id" binding:"required"`
}

// ScoreChangeRequest is a manual instructor override applied during review.
type ScoreChangeRequest struct {
	CWID                   string     `json:"cwid" binding:"required"`
	NewScore               float64    `json:"new_score"`
	SubmissionStatus       string     `json:"submission_status" binding:"required"`
	AdjustedSubmissionDate *time.Time `json:"adjusted_submission_date,omitempty"`
	Justification          string     `json:"justification" binding:"required"`
}

// StudentScore is the reviewed "current value" for one student.
type StudentScore struct {
	CWID           string                  `json:"cwid"`
	Score          float64                 `json:"score"`
	RawScore       float64                 `json:"raw_score"`
	Status         models.SubmissionStatus `json:"status"`
	SubmissionDate *time.Time              `json:"submission_date,omitempty"`
	DaysLate       int                     `json:"days_late"`
	Comment        *string                 `json:"comment,omitempty"`
	Revision       int                     `json:"revision"`
}

// MigrationWithScores is the review payload for one migration.
type MigrationWithScores struct {
	MigrationID  string         `json:"migration_id"`
	AssignmentID string         `json:"assignment_id"`
	Assignment   string         `json:"assignment"`
	Scores       []StudentScore `json:"scores"`
}

// MasterMigrationResponse mirrors the aggregate back to callers.
type MasterMigrationResponse struct {
	ID          string                 `json:"id"`
	CourseID    string                 `json:"course_id"`
	Status      models.MigrationStatus `json:"status"`
	DateStarted time.Time              `json:"date_started"`
	Migrations  []models.Migration     `json:"migrations"`
}
