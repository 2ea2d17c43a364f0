package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// MigrationRepository persists per-assignment migrations.
type MigrationRepository struct {
	db *sqlx.DB
}

// NewMigrationRepository constructs the repository.
func NewMigrationRepository(db *sqlx.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

const migrationColumns = `id, master_migration_id, assignment_id, policy_id, raw_score_status, raw_score_source, raw_score_message`

// Create inserts a new migration with an EMPTY raw score state.
func (r *MigrationRepository) Create(ctx context.Context, m *models.Migration) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.RawScoreStatus == "" {
		m.RawScoreStatus = models.RawScoreStatusEmpty
	}
	const query = `INSERT INTO migrations (id, master_migration_id, assignment_id, policy_id, raw_score_status, raw_score_source, raw_score_message)
VALUES (:id, :master_migration_id, :assignment_id, :policy_id, :raw_score_status, :raw_score_source, :raw_score_message)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	return nil
}

// GetByID returns a migration row.
func (r *MigrationRepository) GetByID(ctx context.Context, id string) (*models.Migration, error) {
	const query = `SELECT ` + migrationColumns + ` FROM migrations WHERE id = $1`
	var m models.Migration
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		return nil, fmt.Errorf("get migration: %w", err)
	}
	return &m, nil
}

// ListByMaster returns the migrations of one grading cycle.
func (r *MigrationRepository) ListByMaster(ctx context.Context, masterMigrationID string) ([]models.Migration, error) {
	const query = `SELECT ` + migrationColumns + ` FROM migrations WHERE master_migration_id = $1 ORDER BY id`
	var list []models.Migration
	if err := r.db.SelectContext(ctx, &list, query, masterMigrationID); err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	return list, nil
}

// SetPolicy swaps the policy reference on a migration.
func (r *MigrationRepository) SetPolicy(ctx context.Context, id string, policyID *string) error {
	const query = `UPDATE migrations SET policy_id = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, policyID, id); err != nil {
		return fmt.Errorf("set migration policy: %w", err)
	}
	return nil
}

// BeginRawScoreImport flips EMPTY -> IMPORTING atomically. A false result
// means another import already claimed the migration.
func (r *MigrationRepository) BeginRawScoreImport(ctx context.Context, id string, source models.RawScoreSource, message string) (bool, error) {
	const query = `UPDATE migrations SET raw_score_status = $1, raw_score_source = $2, raw_score_message = $3
WHERE id = $4 AND raw_score_status = $5`
	result, err := r.db.ExecContext(ctx, query, models.RawScoreStatusImporting, source, message, id, models.RawScoreStatusEmpty)
	if err != nil {
		return false, fmt.Errorf("begin raw score import: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("begin raw score import: %w", err)
	}
	return affected == 1, nil
}

// FinishRawScoreImport flips IMPORTING -> PRESENT atomically.
func (r *MigrationRepository) FinishRawScoreImport(ctx context.Context, id string, message string) (bool, error) {
	const query = `UPDATE migrations SET raw_score_status = $1, raw_score_message = $2
WHERE id = $3 AND raw_score_status = $4`
	result, err := r.db.ExecContext(ctx, query, models.RawScoreStatusPresent, message, id, models.RawScoreStatusImporting)
	if err != nil {
		return false, fmt.Errorf("finish raw score import: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish raw score import: %w", err)
	}
	return affected == 1, nil
}
