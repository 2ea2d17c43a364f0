package models

import "time"

// Course is the slice of course metadata the migration core needs.
type Course struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Code              string    `db:"code" json:"code"`
	Term              string    `db:"term" json:"term"`
	GradebookCourseID int64     `db:"gradebook_course_id" json:"gradebook_course_id"`
	Enabled           bool      `db:"enabled" json:"enabled"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// CourseMember links a user to a course with their gradebook identity.
type CourseMember struct {
	ID          string `db:"id" json:"id"`
	CourseID    string `db:"course_id" json:"course_id"`
	CWID        string `db:"cwid" json:"cwid"`
	GradebookID string `db:"gradebook_id" json:"gradebook_id"`
	Role        string `db:"role" json:"role"`
}

const (
	CourseRoleStudent    = "student"
	CourseRoleInstructor = "instructor"
	CourseRoleTA         = "ta"
)

// Assignment is one gradeable item within a course.
type Assignment struct {
	ID                    string     `db:"id" json:"id"`
	CourseID              string     `db:"course_id" json:"course_id"`
	Name                  string     `db:"name" json:"name"`
	Points                float64    `db:"points" json:"points"`
	DueDate               *time.Time `db:"due_date" json:"due_date,omitempty"`
	GradebookAssignmentID int64      `db:"gradebook_assignment_id" json:"gradebook_assignment_id"`
	Enabled               bool       `db:"enabled" json:"enabled"`
}
