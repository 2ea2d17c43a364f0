package models

import "time"

// TransactionLogEntry is one append-only ledger row recording a computed or
// overridden score for a (migration, student) pair. Entries are never updated
// or deleted; the entry with the highest revision is authoritative.
type TransactionLogEntry struct {
	ID               int64            `db:"id" json:"id"`
	MigrationID      string           `db:"migration_id" json:"migration_id"`
	CWID             string           `db:"cwid" json:"cwid"`
	GradebookID      string           `db:"gradebook_id" json:"gradebook_id"`
	Revision         int              `db:"revision" json:"revision"`
	Score            float64          `db:"score" json:"score"`
	SubmissionStatus SubmissionStatus `db:"submission_status" json:"submission_status"`
	ExtensionID      *string          `db:"extension_id" json:"extension_id,omitempty"`
	ExtensionApplied bool             `db:"extension_applied" json:"extension_applied"`
	SubmissionTime   *time.Time       `db:"submission_time" json:"submission_time,omitempty"`
	Message          *string          `db:"message" json:"message,omitempty"`
	PerformedBy      string           `db:"performed_by" json:"performed_by"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}
