package model

import "time"

// IssueStatus is the issue lifecycle state machine:
//
//	Open → Assigned → InProgress → Completed (terminal)
//
// Closed is a parallel terminal state reachable from any non-terminal state.
// Assigned and InProgress can fall back to Open via unassignment.
type IssueStatus string

const (
	IssueOpen       IssueStatus = "open"
	IssueAssigned   IssueStatus = "assigned"
	IssueInProgress IssueStatus = "in_progress"
	IssueCompleted  IssueStatus = "completed"
	IssueClosed     IssueStatus = "closed"
)

// Terminal reports whether no further transition is permitted from s.
func (s IssueStatus) Terminal() bool {
	return s == IssueCompleted || s == IssueClosed
}

// Difficulty is the maintainer's estimate of an issue's difficulty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Issue is a unit of work belonging to exactly one Repo, indexed by a unique
// external identifier. Assignee is empty while the issue is unassigned.
type Issue struct {
	ID             uint64      `json:"id"`
	RepoID         uint64      `json:"repoId"`
	ExternalID     string      `json:"externalId"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Difficulty     Difficulty  `json:"difficulty"`
	Status         IssueStatus `json:"status"`
	Assignee       string      `json:"assignee,omitempty"`
	Labels         []string    `json:"labels"`
	EstimatedHours int         `json:"estimatedHours"`
	Bounty         int64       `json:"bounty"`
	CreatedAt      time.Time   `json:"createdAt"`
	AssignedAt     time.Time   `json:"assignedAt,omitzero"`
	CompletedAt    time.Time   `json:"completedAt,omitzero"`
}
