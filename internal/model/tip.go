package model

import "time"

// Tip is an immutable, append-only record of a value transfer. Amount is net
// of the platform fee. IssueID is zero when the tip is not tied to an issue.
// Aggregate counters in the settlement ledger always equal the sums over the
// recorded tips.
type Tip struct {
	ID        uint64    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Amount    int64     `json:"amount"` // net of fee, micro-credits
	IssueID   uint64    `json:"issueId,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
