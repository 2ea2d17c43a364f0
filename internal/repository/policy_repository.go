package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// PolicyRepository persists late-policy references and usage counters.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository constructs the repository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetByID returns a policy row.
func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*models.Policy, error) {
	const query = `SELECT id, course_id, name, uri, number_of_migrations, created_by, created_at FROM policies WHERE id = $1`
	var p models.Policy
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return &p, nil
}

// IncrementUsage bumps the migrations-using-this-policy counter.
func (r *PolicyRepository) IncrementUsage(ctx context.Context, id string) error {
	const query = `UPDATE policies SET number_of_migrations = number_of_migrations + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment policy usage: %w", err)
	}
	return nil
}

// DecrementUsage lowers the usage counter, never below zero.
func (r *PolicyRepository) DecrementUsage(ctx context.Context, id string) error {
	const query = `UPDATE policies SET number_of_migrations = GREATEST(number_of_migrations - 1, 0) WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("decrement policy usage: %w", err)
	}
	return nil
}
