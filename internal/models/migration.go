package models

import "time"

// MigrationStatus is the lifecycle of a grading cycle (master migration).
// Transitions are linear and every mutation is guarded by a compare-and-swap
// on the expected current status.
type MigrationStatus string

const (
	MigrationStatusCreated        MigrationStatus = "created"
	MigrationStatusLoaded         MigrationStatus = "loaded"
	MigrationStatusStarted        MigrationStatus = "started"
	MigrationStatusAwaitingReview MigrationStatus = "awaiting_review"
	MigrationStatusReadyToPost    MigrationStatus = "ready_to_post"
	MigrationStatusPosting        MigrationStatus = "posting"
	MigrationStatusCompleted      MigrationStatus = "completed"
)

// RawScoreStatus tracks raw score availability for one migration. It only
// ever advances EMPTY -> IMPORTING -> PRESENT.
type RawScoreStatus string

const (
	RawScoreStatusEmpty     RawScoreStatus = "empty"
	RawScoreStatusImporting RawScoreStatus = "importing"
	RawScoreStatusPresent   RawScoreStatus = "present"
)

// RawScoreSource identifies the external grading tool a CSV came from.
type RawScoreSource string

const (
	RawScoreSourceGradescope   RawScoreSource = "gradescope"
	RawScoreSourcePrairieLearn RawScoreSource = "prairielearn"
	RawScoreSourceRunestone    RawScoreSource = "runestone"
)

// MasterMigration groups the per-assignment migrations of one grading cycle.
type MasterMigration struct {
	ID          string          `db:"id" json:"id"`
	CourseID    string          `db:"course_id" json:"course_id"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	DateStarted time.Time       `db:"date_started" json:"date_started"`
	Status      MigrationStatus `db:"status" json:"status"`

	Migrations []Migration `db:"-" json:"migrations,omitempty"`
}

// Migration applies one assignment's late policy to imported raw scores.
type Migration struct {
	ID                string         `db:"id" json:"id"`
	MasterMigrationID string         `db:"master_migration_id" json:"master_migration_id"`
	AssignmentID      string         `db:"assignment_id" json:"assignment_id"`
	PolicyID          *string        `db:"policy_id" json:"policy_id,omitempty"`
	RawScoreStatus    RawScoreStatus `db:"raw_score_status" json:"raw_score_status"`
	RawScoreSource    RawScoreSource `db:"raw_score_source" json:"raw_score_source,omitempty"`
	RawScoreMessage   *string        `db:"raw_score_message" json:"raw_score_message,omitempty"`
}
