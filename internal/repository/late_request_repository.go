package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// LateRequestRepository reads extension requests for migrations.
type LateRequestRepository struct {
	db *sqlx.DB
}

// NewLateRequestRepository constructs the repository.
func NewLateRequestRepository(db *sqlx.DB) *LateRequestRepository {
	return &LateRequestRepository{db: db}
}

const lateRequestColumns = `id, assignment_id, cwid, request_type, status, days_requested, extension_date, submission_date, reviewer_response`

// GetByID returns one late request, or nil when it does not exist.
func (r *LateRequestRepository) GetByID(ctx context.Context, id string) (*models.LateRequest, error) {
	const query = `SELECT ` + lateRequestColumns + ` FROM late_requests WHERE id = $1`
	var lr models.LateRequest
	if err := r.db.GetContext(ctx, &lr, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get late request: %w", err)
	}
	return &lr, nil
}

// MapByAssignment returns the late requests for an assignment keyed by
// student CWID.
func (r *LateRequestRepository) MapByAssignment(ctx context.Context, assignmentID string) (map[string]models.LateRequest, error) {
	const query = `SELECT ` + lateRequestColumns + ` FROM late_requests WHERE assignment_id = $1`
	var requests []models.LateRequest
	if err := r.db.SelectContext(ctx, &requests, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list late requests: %w", err)
	}
	byCWID := make(map[string]models.LateRequest, len(requests))
	for _, lr := range requests {
		byCWID[lr.CWID] = lr
	}
	return byCWID, nil
}
