package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// UserRepository reads user identities for authentication.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by login email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT cwid, email, name, password_hash, is_admin, created_at FROM users WHERE email = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByCWID returns a user by campus-wide id.
func (r *UserRepository) FindByCWID(ctx context.Context, cwid string) (*models.User, error) {
	const query = `SELECT cwid, email, name, password_hash, is_admin, created_at FROM users WHERE cwid = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, cwid); err != nil {
		return nil, fmt.Errorf("find user by cwid: %w", err)
	}
	return &user, nil
}
