package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// TransactionLogRepository persists the append-only score ledger.
type TransactionLogRepository struct {
	db *sqlx.DB
}

// NewTransactionLogRepository constructs the repository.
func NewTransactionLogRepository(db *sqlx.DB) *TransactionLogRepository {
	return &TransactionLogRepository{db: db}
}

const logColumns = `id, migration_id, cwid, gradebook_id, revision, score, submission_status, extension_id, extension_applied, submission_time, message, performed_by, created_at`

// Append inserts a new ledger entry. An advisory lock on the
// (migration, student) pair serializes concurrent appends so two transactions
// cannot read the same MAX(revision) and insert duplicate revisions.
func (r *TransactionLogRepository) Append(ctx context.Context, entry *models.TransactionLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append transaction log entry: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// released automatically at commit or rollback
	const lock = `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`
	if _, err := tx.ExecContext(ctx, lock, entry.MigrationID, entry.CWID); err != nil {
		return fmt.Errorf("lock transaction log pair: %w", err)
	}

	const query = `INSERT INTO migration_transaction_log
(migration_id, cwid, gradebook_id, revision, score, submission_status, extension_id, extension_applied, submission_time, message, performed_by, created_at)
VALUES ($1, $2, $3,
	(SELECT COALESCE(MAX(revision), 0) + 1 FROM migration_transaction_log WHERE migration_id = $1 AND cwid = $2),
	$4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, revision`
	row := tx.QueryRowxContext(ctx, query,
		entry.MigrationID,
		entry.CWID,
		entry.GradebookID,
		entry.Score,
		entry.SubmissionStatus,
		entry.ExtensionID,
		entry.ExtensionApplied,
		entry.SubmissionTime,
		entry.Message,
		entry.PerformedBy,
		entry.CreatedAt,
	)
	if err := row.Scan(&entry.ID, &entry.Revision); err != nil {
		return fmt.Errorf("append transaction log entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append transaction log entry: %w", err)
	}
	return nil
}

// ListByMigration returns every entry for a migration ordered by student and
// revision, oldest revision first.
func (r *TransactionLogRepository) ListByMigration(ctx context.Context, migrationID string) ([]models.TransactionLogEntry, error) {
	const query = `SELECT ` + logColumns + ` FROM migration_transaction_log
WHERE migration_id = $1 ORDER BY cwid, revision ASC`
	var entries []models.TransactionLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, migrationID); err != nil {
		return nil, fmt.Errorf("list transaction log: %w", err)
	}
	return entries, nil
}

// ListByStudent returns the entries for one (student, migration) pair in
// revision order.
func (r *TransactionLogRepository) ListByStudent(ctx context.Context, migrationID, cwid string) ([]models.TransactionLogEntry, error) {
	const query = `SELECT ` + logColumns + ` FROM migration_transaction_log
WHERE migration_id = $1 AND cwid = $2 ORDER BY revision ASC`
	var entries []models.TransactionLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, migrationID, cwid); err != nil {
		return nil, fmt.Errorf("list transaction log for student: %w", err)
	}
	return entries, nil
}

// ListCurrent returns the authoritative entry (highest revision) per student
// for a migration.
func (r *TransactionLogRepository) ListCurrent(ctx context.Context, migrationID string) ([]models.TransactionLogEntry, error) {
	const query = `SELECT DISTINCT ON (cwid) ` + logColumns + ` FROM migration_transaction_log
WHERE migration_id = $1 ORDER BY cwid, revision DESC`
	var entries []models.TransactionLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, migrationID); err != nil {
		return nil, fmt.Errorf("list current transaction log: %w", err)
	}
	return entries, nil
}
