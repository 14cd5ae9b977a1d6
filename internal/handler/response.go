// Package handler exposes the four ledgers over HTTP. Handlers decode the
// request, pull the caller identity from the context and delegate to the
// ledger core; they hold no business rules of their own.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/forgecredit/forgecredit/internal/apperror"
	"github.com/forgecredit/forgecredit/internal/auth"
)

// ErrorResponse is the error shape returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps the ledger error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrAlreadyExists):
			status = http.StatusConflict
			errorType = "already_exists"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusForbidden
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrInvalidState):
			status = http.StatusConflict
			errorType = "invalid_state"
		case errors.Is(err, apperror.ErrInvalidInput):
			status = http.StatusBadRequest
			errorType = "invalid_input"
		case errors.Is(err, apperror.ErrLimitExceeded):
			status = http.StatusUnprocessableEntity
			errorType = "limit_exceeded"
		case errors.Is(err, apperror.ErrTransferFailed):
			status = http.StatusPaymentRequired
			errorType = "transfer_failed"
		case errors.Is(err, apperror.ErrPaused):
			status = http.StatusServiceUnavailable
			errorType = "paused"
		}

		writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}

// caller returns the authenticated caller identity, writing a 401 when the
// request carries none. Mutating routes sit behind auth.RequireCaller, so a
// missing caller here means a wiring mistake rather than a client error.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "caller identity required",
		})
		return "", false
	}
	return c, true
}

// decode parses the JSON body into dst, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: "invalid JSON body: " + err.Error(),
		})
		return false
	}
	return true
}

// pathID parses the named numeric URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: name + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

// pathIDValue parses a numeric identifier from an arbitrary string, writing
// a 400 on failure.
func pathIDValue(w http.ResponseWriter, value, name string) (uint64, bool) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: name + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

// pageParams reads offset and limit from the query string. Both default to
// zero; a zero limit means "no limit".
func pageParams(r *http.Request) (offset, limit int) {
	q := r.URL.Query()
	offset, _ = strconv.Atoi(q.Get("offset"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	return offset, limit
}

// intParam reads a numeric query parameter with a fallback.
func intParam(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
