package models

import "time"

// ExtensionStatus tracks the review lifecycle of a late request.
type ExtensionStatus string

const (
	ExtensionStatusPending     ExtensionStatus = "pending"
	ExtensionStatusApproved    ExtensionStatus = "approved"
	ExtensionStatusRejected    ExtensionStatus = "rejected"
	ExtensionStatusIgnored     ExtensionStatus = "ignored"
	ExtensionStatusApplied     ExtensionStatus = "applied"
	ExtensionStatusNoExtension ExtensionStatus = "no_extension"
)

// LateRequest is a student's request for extra time on an assignment. The
// scoring engine decides whether it is actually applied.
type LateRequest struct {
	ID               string          `db:"id" json:"id"`
	AssignmentID     string          `db:"assignment_id" json:"assignment_id"`
	CWID             string          `db:"cwid" json:"cwid"`
	RequestType      string          `db:"request_type" json:"request_type"`
	Status           ExtensionStatus `db:"status" json:"status"`
	DaysRequested    float64         `db:"days_requested" json:"days_requested"`
	ExtensionDate    *time.Time      `db:"extension_date" json:"extension_date,omitempty"`
	SubmissionDate   time.Time       `db:"submission_date" json:"submission_date"`
	ReviewerResponse *string         `db:"reviewer_response" json:"reviewer_response,omitempty"`
}
