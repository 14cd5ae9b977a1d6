package model

import "time"

// Event types, one per observable state transition.
const (
	EventProfileCreated       = "profile.created"
	EventProfileUpdated       = "profile.updated"
	EventReputationUpdated    = "reputation.updated"
	EventRepoAdded            = "repo.added"
	EventRepoUpdated          = "repo.updated"
	EventRepoDeactivated      = "repo.deactivated"
	EventRepoReactivated      = "repo.reactivated"
	EventRepoTransferred      = "repo.transferred"
	EventIssueAdded           = "issue.added"
	EventIssueUpdated         = "issue.updated"
	EventIssueAssigned        = "issue.assigned"
	EventIssueStarted         = "issue.started"
	EventIssueCompleted       = "issue.completed"
	EventIssueClosed          = "issue.closed"
	EventIssueUnassigned      = "issue.unassigned"
	EventApplicationSubmitted = "application.submitted"
	EventApplicationAccepted  = "application.accepted"
	EventApplicationRejected  = "application.rejected"
	EventApplicationWithdrawn = "application.withdrawn"
	EventTipSent              = "tip.sent"
	EventBatchTipSent         = "tip.batch_sent"
	EventFeeUpdated           = "fee.updated"
	EventFeesWithdrawn        = "fees.withdrawn"
	EventPauseToggled         = "pause.toggled"
)

// Event is the record emitted for every state transition, for external
// consumers such as a UI or an indexer. Entity ID fields are zero when not
// applicable to the event type.
type Event struct {
	ID            string    `json:"id"` // xid, sortable by creation time
	Type          string    `json:"type"`
	Actor         string    `json:"actor,omitempty"`
	Subject       string    `json:"subject,omitempty"` // identity the event is about
	RepoID        uint64    `json:"repoId,omitempty"`
	IssueID       uint64    `json:"issueId,omitempty"`
	ApplicationID uint64    `json:"applicationId,omitempty"`
	TipID         uint64    `json:"tipId,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	At            time.Time `json:"at"`
}
