package models

import "time"

// SubmissionStatus mirrors the submission states understood by the scoring
// engine and the downstream gradebook.
type SubmissionStatus string

const (
	SubmissionStatusMissing  SubmissionStatus = "missing"
	SubmissionStatusExcused  SubmissionStatus = "excused"
	SubmissionStatusLate     SubmissionStatus = "late"
	SubmissionStatusExtended SubmissionStatus = "extended"
	SubmissionStatusOnTime   SubmissionStatus = "on_time"
)

// RawScore is one unprocessed score imported from an external grading tool,
// prior to any late-policy adjustment.
type RawScore struct {
	ID               string           `db:"id" json:"id"`
	MigrationID      string           `db:"migration_id" json:"migration_id"`
	CWID             string           `db:"cwid" json:"cwid"`
	Score            *float64         `db:"score" json:"score,omitempty"`
	SubmissionTime   *time.Time       `db:"submission_time" json:"submission_time,omitempty"`
	HoursLate        *float64         `db:"hours_late" json:"hours_late,omitempty"`
	SubmissionStatus SubmissionStatus `db:"submission_status" json:"submission_status"`
}
