// Package event routes state-transition events from the ledgers to whatever
// wants them. The registries only see the Sink interface; production wires a
// Recorder backed by the sqlite journal, tests use a Memory sink.
package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rs/xid"

	"github.com/forgecredit/forgecredit/internal/model"
	"github.com/forgecredit/forgecredit/internal/observability/metrics"
	"github.com/forgecredit/forgecredit/internal/repository"
)

// Sink receives one event per committed state transition. Implementations
// must not call back into the emitting registry.
type Sink interface {
	Record(e model.Event)
}

// Recorder persists events to a journal. A journal write failure is logged
// and dropped rather than failing the already-committed operation.
type Recorder struct {
	journal repository.EventJournal
	logger  *slog.Logger
}

func NewRecorder(journal repository.EventJournal, logger *slog.Logger) *Recorder {
	return &Recorder{journal: journal, logger: logger}
}

func (r *Recorder) Record(e model.Event) {
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	metrics.ObserveTransition(e.Type)
	if e.Type == model.EventTipSent {
		metrics.AddTipVolume(e.Amount)
	}
	if err := r.journal.Append(context.Background(), &e); err != nil {
		r.logger.Error("failed to journal event",
			slog.String("type", e.Type),
			slog.String("error", err.Error()),
		)
	}
}

// Memory is an in-memory sink for tests.
type Memory struct {
	mu     sync.Mutex
	events []model.Event
}

func (m *Memory) Record(e model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	m.events = append(m.events, e)
}

// Events returns a copy of everything recorded so far, in order.
func (m *Memory) Events() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, len(m.events))
	copy(out, m.events)
	return out
}
