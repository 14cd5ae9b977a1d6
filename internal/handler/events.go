package handler

import (
	"net/http"

	"github.com/forgecredit/forgecredit/internal/repository"
)

// EventsHandler serves the durable event journal.
type EventsHandler struct {
	journal repository.EventJournal
}

func NewEventsHandler(journal repository.EventJournal) *EventsHandler {
	return &EventsHandler{journal: journal}
}

func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	page := repository.Page{Offset: offset, Limit: limit}

	var err error
	if eventType := r.URL.Query().Get("type"); eventType != "" {
		events, byErr := h.journal.ByType(r.Context(), eventType, page)
		if byErr == nil {
			writeJSON(w, http.StatusOK, events)
			return
		}
		err = byErr
	} else {
		events, recentErr := h.journal.Recent(r.Context(), page)
		if recentErr == nil {
			writeJSON(w, http.StatusOK, events)
			return
		}
		err = recentErr
	}
	writeError(w, err)
}

func (h *EventsHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.journal.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}
