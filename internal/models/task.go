package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus captures background task lifecycle states. MISSING is synthetic:
// it is reported for dependency ids that cannot be resolved but never stored.
type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "CREATED"
	TaskStatusQueued    TaskStatus = "QUEUED"
	TaskStatusStarted   TaskStatus = "STARTED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusMissing   TaskStatus = "MISSING"
)

// Terminal reports whether a status can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskType discriminates the payload union.
type TaskType string

const (
	TaskTypeCourseSync      TaskType = "course_sync"
	TaskTypeUserSync        TaskType = "user_sync"
	TaskTypeZeroOutScores   TaskType = "zero_out_scores"
	TaskTypeProcessScores   TaskType = "process_scores"
	TaskTypePostToGradebook TaskType = "post_to_gradebook"
)

// TaskRecord is the persisted unit of background work. Status, message and
// completion time are mutated only by the orchestrator; everything else is
// immutable after creation.
type TaskRecord struct {
	ID            string      `db:"id" json:"id"`
	CreatedBy     string      `db:"created_by" json:"created_by"`
	Name          string      `db:"name" json:"name"`
	Type          TaskType    `db:"type" json:"type"`
	Status        TaskStatus  `db:"status" json:"status"`
	StatusMessage *string     `db:"status_message" json:"status_message,omitempty"`
	SubmittedTime time.Time   `db:"submitted_time" json:"submitted_time"`
	CompletedTime *time.Time  `db:"completed_time" json:"completed_time,omitempty"`
	Payload       TaskPayload `db:"payload" json:"payload"`
}

// TaskPayload is a tagged union persisted as JSONB. Exactly one variant is
// set, matching the record's Type.
type TaskPayload struct {
	CourseSync      *CourseSyncPayload      `json:"course_sync,omitempty"`
	UserSync        *UserSyncPayload        `json:"user_sync,omitempty"`
	ZeroOutScores   *ZeroOutScoresPayload   `json:"zero_out_scores,omitempty"`
	ProcessScores   *ProcessScoresPayload   `json:"process_scores,omitempty"`
	PostToGradebook *PostToGradebookPayload `json:"post_to_gradebook,omitempty"`
}

// CourseSyncPayload syncs course metadata from the external gradebook.
type CourseSyncPayload struct {
	CourseID          string `json:"course_id"`
	GradebookCourseID int64  `json:"gradebook_course_id"`
	SyncAssignments   bool   `json:"sync_assignments"`
}

// UserSyncPayload refreshes course membership from the external gradebook.
type UserSyncPayload struct {
	CourseID string `json:"course_id"`
}

// ZeroOutScoresPayload seeds a zero/missing baseline for every student.
type ZeroOutScoresPayload struct {
	MigrationID string `json:"migration_id"`
}

// ProcessScoresPayload drives the scoring engine for one migration.
type ProcessScoresPayload struct {
	MigrationID  string `json:"migration_id"`
	AssignmentID string `json:"assignment_id"`
	PolicyURI    string `json:"policy_uri"`
}

// PostToGradebookPayload publishes reviewed scores for one migration.
type PostToGradebookPayload struct {
	MigrationID           string `json:"migration_id"`
	GradebookCourseID     int64  `json:"gradebook_course_id"`
	GradebookAssignmentID int64  `json:"gradebook_assignment_id"`
}

// Value marshals the payload to JSON for persistence.
func (p TaskPayload) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal task payload: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the union struct.
func (p *TaskPayload) Scan(value interface{}) error {
	if value == nil {
		*p = TaskPayload{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for TaskPayload", value)
	}
	if len(data) == 0 {
		*p = TaskPayload{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal task payload: %w", err)
	}
	return nil
}
