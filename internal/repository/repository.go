// Package repository declares the persistence interfaces for the two
// append-only surfaces exposed to external consumers: the event journal and
// the tip archive. The ledger core itself is in-memory; these stores are
// written after an operation commits and are read-only thereafter.
package repository

import (
	"context"

	"github.com/forgecredit/forgecredit/internal/model"
)

// Page selects a window of an ordered collection. A Limit of zero means
// "no limit". Pagination never changes which elements qualify, only how
// many are returned.
type Page struct {
	Offset int
	Limit  int
}

// EventJournal persists observable events in commit order.
type EventJournal interface {
	Append(ctx context.Context, e *model.Event) error
	// Recent returns events most-recent-first.
	Recent(ctx context.Context, page Page) ([]model.Event, error)
	// ByType returns events of one type, most-recent-first.
	ByType(ctx context.Context, eventType string, page Page) ([]model.Event, error)
	Count(ctx context.Context) (int64, error)
}

// TipArchive persists the immutable tip history.
type TipArchive interface {
	AppendTip(ctx context.Context, t *model.Tip) error
	// RecentTips returns tips most-recent-first.
	RecentTips(ctx context.Context, page Page) ([]model.Tip, error)
	CountTips(ctx context.Context) (int64, error)
}
