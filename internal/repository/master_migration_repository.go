package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// MasterMigrationRepository persists grading cycle aggregates.
type MasterMigrationRepository struct {
	db *sqlx.DB
}

// NewMasterMigrationRepository constructs the repository.
func NewMasterMigrationRepository(db *sqlx.DB) *MasterMigrationRepository {
	return &MasterMigrationRepository{db: db}
}

// Create inserts a new master migration in CREATED state.
func (r *MasterMigrationRepository) Create(ctx context.Context, m *models.MasterMigration) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.MigrationStatusCreated
	}
	if m.DateStarted.IsZero() {
		m.DateStarted = time.Now().UTC()
	}
	const query = `INSERT INTO master_migrations (id, course_id, created_by, date_started, status)
VALUES (:id, :course_id, :created_by, :date_started, :status)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("create master migration: %w", err)
	}
	return nil
}

// GetByID returns a master migration row.
func (r *MasterMigrationRepository) GetByID(ctx context.Context, id string) (*models.MasterMigration, error) {
	const query = `SELECT id, course_id, created_by, date_started, status FROM master_migrations WHERE id = $1`
	var m models.MasterMigration
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		return nil, fmt.Errorf("get master migration: %w", err)
	}
	return &m, nil
}

// ListByCourse returns all grading cycles for a course, newest first.
func (r *MasterMigrationRepository) ListByCourse(ctx context.Context, courseID string) ([]models.MasterMigration, error) {
	const query = `SELECT id, course_id, created_by, date_started, status FROM master_migrations
WHERE course_id = $1 ORDER BY date_started DESC`
	var list []models.MasterMigration
	if err := r.db.SelectContext(ctx, &list, query, courseID); err != nil {
		return nil, fmt.Errorf("list master migrations: %w", err)
	}
	return list, nil
}

// UpdateStatusIf performs a compare-and-swap on the aggregate status. It
// reports false when the row was not in the expected state, which callers
// treat as a state-machine violation.
func (r *MasterMigrationRepository) UpdateStatusIf(ctx context.Context, id string, from, to models.MigrationStatus) (bool, error) {
	const query = `UPDATE master_migrations SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("update master migration status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update master migration status: %w", err)
	}
	return affected == 1, nil
}

// Delete removes the aggregate and its child migrations.
func (r *MasterMigrationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete master migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM migrations WHERE master_migration_id = $1`, id); err != nil {
		return fmt.Errorf("delete child migrations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM master_migrations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete master migration: %w", err)
	}
	return tx.Commit()
}
