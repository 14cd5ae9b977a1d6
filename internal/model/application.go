package model

import "time"

// ApplicationStatus: Pending → Accepted (terminal) or Pending → Rejected
// (terminal, also reached via withdrawal).
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a contributor's request to be assigned an issue.
// MatchScore is supplied externally and treated as an opaque 0–100 integer.
// A (issue, contributor) pair has at most one non-rejected application.
type Application struct {
	ID              uint64            `json:"id"`
	IssueID         uint64            `json:"issueId"`
	Contributor     string            `json:"contributor"`
	Message         string            `json:"message"`
	MatchScore      int               `json:"matchScore"`
	Status          ApplicationStatus `json:"status"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	ReviewedAt      time.Time         `json:"reviewedAt,omitzero"`
}
