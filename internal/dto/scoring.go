package dto

import (
	"time"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// RawGradeMessage is the outbound raw score published to the scoring engine
// on the "{migrationId}.raw-grades" routing key.
type RawGradeMessage struct {
	CWID             string                  `json:"cwid"`
	RawScore         float64                 `json:"rawScore"`
	SubmissionDate   *time.Time              `json:"submissionDate,omitempty"`
	SubmissionStatus models.SubmissionStatus `json:"submissionStatus"`
	ExtensionID      *string                 `json:"extensionId,omitempty"`
	ExtensionDate    *time.Time              `json:"extensionDate,omitempty"`
	ExtensionDays    *float64                `json:"extensionDays,omitempty"`
	ExtensionType    *string                 `json:"extensionType,omitempty"`
	ExtensionStatus  *models.ExtensionStatus `json:"extensionStatus,omitempty"`
}

// ScoredMessage is the inbound computed score consumed from the
// "{migrationId}.scored" routing key.
type ScoredMessage struct {
	CWID                   string                  `json:"cwid"`
	ExtensionID            *string                 `json:"extensionId,omitempty"`
	RawScore               float64                 `json:"rawScore"`
	FinalScore             float64                 `json:"finalScore"`
	AdjustedSubmissionTime *time.Time              `json:"adjustedSubmissionTime,omitempty"`
	HoursLate              float64                 `json:"hoursLate"`
	SubmissionStatus       models.SubmissionStatus `json:"submissionStatus"`
	ExtensionStatus        models.ExtensionStatus  `json:"extensionStatus"`
	ExtensionMessage       *string                 `json:"extensionMessage,omitempty"`
	SubmissionMessage      *string                 `json:"submissionMessage,omitempty"`
}

// AssignmentMetadata travels with the grading start control message so the
// engine can normalize scores against the assignment definition.
type AssignmentMetadata struct {
	AssignmentID string     `json:"assignmentId"`
	MaxScore     float64    `json:"maxScore"`
	MinScore     float64    `json:"minScore"`
	InitialDueDate *time.Time `json:"initialDueDate,omitempty"`
}

// GradingStartMessage instructs the scoring engine to begin grading one
// migration: where the policy lives and which routing keys to use.
type GradingStartMessage struct {
	MigrationID          string              `json:"migrationId"`
	PolicyURI            string              `json:"policyURI"`
	RawGradeRoutingKey   string              `json:"rawGradeRoutingKey"`
	ScoreCreatedRoutingKey string            `json:"scoreCreatedRoutingKey"`
	GlobalMetadata       *AssignmentMetadata `json:"globalMetadata,omitempty"`
}
