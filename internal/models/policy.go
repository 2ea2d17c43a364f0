package models

import "time"

// Policy references a late-policy script stored for the scoring engine. The
// usage counter tracks how many migrations currently reference it so that
// in-use policies cannot be deleted.
type Policy struct {
	ID                 string    `db:"id" json:"id"`
	CourseID           string    `db:"course_id" json:"course_id"`
	Name               string    `db:"name" json:"name"`
	URI                string    `db:"uri" json:"uri"`
	NumberOfMigrations int       `db:"number_of_migrations" json:"number_of_migrations"`
	CreatedBy          string    `db:"created_by" json:"created_by"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
