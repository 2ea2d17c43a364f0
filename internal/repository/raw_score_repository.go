package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// RawScoreRepository persists imported raw scores.
type RawScoreRepository struct {
	db *sqlx.DB
}

// NewRawScoreRepository constructs the repository.
func NewRawScoreRepository(db *sqlx.DB) *RawScoreRepository {
	return &RawScoreRepository{db: db}
}

const rawScoreColumns = `id, migration_id, cwid, score, submission_time, hours_late, submission_status`

// InsertBatch writes a full import in one transaction.
func (r *RawScoreRepository) InsertBatch(ctx context.Context, scores []models.RawScore) error {
	if len(scores) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert raw scores: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO raw_scores (id, migration_id, cwid, score, submission_time, hours_late, submission_status)
VALUES (:id, :migration_id, :cwid, :score, :submission_time, :hours_late, :submission_status)`
	for i := range scores {
		if scores[i].ID == "" {
			scores[i].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, query, scores[i]); err != nil {
			return fmt.Errorf("insert raw score for %s: %w", scores[i].CWID, err)
		}
	}
	return tx.Commit()
}

// ListByMigration returns all imported rows for a migration.
func (r *RawScoreRepository) ListByMigration(ctx context.Context, migrationID string) ([]models.RawScore, error) {
	const query = `SELECT ` + rawScoreColumns + ` FROM raw_scores WHERE migration_id = $1 ORDER BY cwid`
	var scores []models.RawScore
	if err := r.db.SelectContext(ctx, &scores, query, migrationID); err != nil {
		return nil, fmt.Errorf("list raw scores: %w", err)
	}
	return scores, nil
}

// GetByStudent returns the raw score row for one (student, migration) pair.
func (r *RawScoreRepository) GetByStudent(ctx context.Context, migrationID, cwid string) (*models.RawScore, error) {
	const query = `SELECT ` + rawScoreColumns + ` FROM raw_scores WHERE migration_id = $1 AND cwid = $2`
	var score models.RawScore
	if err := r.db.GetContext(ctx, &score, query, migrationID, cwid); err != nil {
		return nil, fmt.Errorf("get raw score: %w", err)
	}
	return &score, nil
}
