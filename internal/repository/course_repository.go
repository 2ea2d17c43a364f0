package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// CourseRepository reads the course, membership and assignment slices the
// migration core depends on.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// GetCourse returns a course row.
func (r *CourseRepository) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, code, term, gradebook_course_id, enabled, created_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &course, nil
}

// GetCourseForMigration resolves the owning course of a migration through
// its assignment.
func (r *CourseRepository) GetCourseForMigration(ctx context.Context, migrationID string) (*models.Course, error) {
	const query = `SELECT c.id, c.name, c.code, c.term, c.gradebook_course_id, c.enabled, c.created_at
FROM courses c
JOIN assignments a ON a.course_id = c.id
JOIN migrations m ON m.assignment_id = a.id
WHERE m.id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, migrationID); err != nil {
		return nil, fmt.Errorf("get course for migration: %w", err)
	}
	return &course, nil
}

// GetAssignment returns an assignment row.
func (r *CourseRepository) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, course_id, name, points, due_date, gradebook_assignment_id, enabled FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &assignment, nil
}

// ListStudents returns the student members of a course.
func (r *CourseRepository) ListStudents(ctx context.Context, courseID string) ([]models.CourseMember, error) {
	const query = `SELECT id, course_id, cwid, gradebook_id, role FROM course_members
WHERE course_id = $1 AND role = $2 ORDER BY cwid`
	var members []models.CourseMember
	if err := r.db.SelectContext(ctx, &members, query, courseID, models.CourseRoleStudent); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return members, nil
}

// FindMember returns the membership row for a (course, student) pair, or nil
// when the student is not enrolled.
func (r *CourseRepository) FindMember(ctx context.Context, courseID, cwid string) (*models.CourseMember, error) {
	const query = `SELECT id, course_id, cwid, gradebook_id, role FROM course_members WHERE course_id = $1 AND cwid = $2`
	var member models.CourseMember
	if err := r.db.GetContext(ctx, &member, query, courseID, cwid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find course member: %w", err)
	}
	return &member, nil
}
