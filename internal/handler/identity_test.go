package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/forgecredit/forgecredit/internal/auth"
	"github.com/forgecredit/forgecredit/internal/handler"
	"github.com/forgecredit/forgecredit/internal/ledger"
	"github.com/forgecredit/forgecredit/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// do sends a request through the router, injecting the caller identity the
// way the auth middleware would.
func do(t *testing.T, router http.Handler, method, path, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != "" {
		req = req.WithContext(auth.WithCaller(req.Context(), caller))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func newIdentityRouter(t *testing.T) (*chi.Mux, *ledger.IdentityRegistry) {
	t.Helper()
	registry := ledger.NewIdentityRegistry("admin", nil, testLogger())
	h := handler.NewIdentityHandler(registry)

	r := chi.NewRouter()
	r.Get("/profiles", h.List)
	r.Get("/profiles/top", h.Top)
	r.Get("/profiles/handle/{handle}", h.GetByHandle)
	r.Get("/profiles/{owner}", h.Get)
	r.Post("/profiles", h.Create)
	r.Put("/profiles", h.Update)
	return r, registry
}

const aliceProfile = `{"handle":"alice-dev","techStack":["go"],"tier":"intermediate","role":"contributor"}`

func TestIdentityHandler_Create(t *testing.T) {
	t.Run("valid profile", func(t *testing.T) {
		router, _ := newIdentityRouter(t)

		rr := do(t, router, http.MethodPost, "/profiles", "alice", aliceProfile)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var profile model.Profile
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&profile))
		assert.Equal(t, "alice", profile.Owner)
		assert.Equal(t, "alice-dev", profile.Handle)
		assert.Equal(t, int64(0), profile.Reputation)
	})

	t.Run("missing caller", func(t *testing.T) {
		router, _ := newIdentityRouter(t)

		rr := do(t, router, http.MethodPost, "/profiles", "", aliceProfile)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "unauthorized", decodeError(t, rr).Error)
	})

	t.Run("invalid request body", func(t *testing.T) {
		router, _ := newIdentityRouter(t)

		rr := do(t, router, http.MethodPost, "/profiles", "alice", "not json")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_input", decodeError(t, rr).Error)
	})

	t.Run("duplicate handle", func(t *testing.T) {
		router, _ := newIdentityRouter(t)
		do(t, router, http.MethodPost, "/profiles", "alice", aliceProfile)

		rr := do(t, router, http.MethodPost, "/profiles", "bob", aliceProfile)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "already_exists", decodeError(t, rr).Error)
	})

	t.Run("missing tech stack", func(t *testing.T) {
		router, _ := newIdentityRouter(t)

		body := `{"handle":"bare","tier":"beginner","role":"contributor"}`
		rr := do(t, router, http.MethodPost, "/profiles", "bob", body)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_input", decodeError(t, rr).Error)
	})
}

func TestIdentityHandler_Get(t *testing.T) {
	router, _ := newIdentityRouter(t)
	do(t, router, http.MethodPost, "/profiles", "alice", aliceProfile)

	t.Run("by owner", func(t *testing.T) {
		rr := do(t, router, http.MethodGet, "/profiles/alice", "", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		var profile model.Profile
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&profile))
		assert.Equal(t, "alice-dev", profile.Handle)
	})

	t.Run("by handle", func(t *testing.T) {
		rr := do(t, router, http.MethodGet, "/profiles/handle/alice-dev", "", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		var profile model.Profile
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&profile))
		assert.Equal(t, "alice", profile.Owner)
	})

	t.Run("unknown owner", func(t *testing.T) {
		rr := do(t, router, http.MethodGet, "/profiles/nobody", "", "")

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not_found", decodeError(t, rr).Error)
	})
}

func TestIdentityHandler_List(t *testing.T) {
	router, _ := newIdentityRouter(t)
	do(t, router, http.MethodPost, "/profiles", "alice", aliceProfile)
	do(t, router, http.MethodPost, "/profiles", "bob",
		`{"handle":"bob-dev","techStack":["rust"],"tier":"advanced","role":"maintainer"}`)

	t.Run("tech filter", func(t *testing.T) {
		rr := do(t, router, http.MethodGet, "/profiles?tech=rust", "", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		var profiles []model.Profile
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&profiles))
		assert.Len(t, profiles, 1)
		assert.Equal(t, "bob", profiles[0].Owner)
	})

	t.Run("unfiltered roster", func(t *testing.T) {
		rr := do(t, router, http.MethodGet, "/profiles", "", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		var profiles []model.Profile
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&profiles))
		assert.Len(t, profiles, 2)
	})
}

func TestIdentityHandler_Update(t *testing.T) {
	router, _ := newIdentityRouter(t)
	do(t, router, http.MethodPost, "/profiles", "alice", aliceProfile)

	t.Run("bio updated, handle immutable", func(t *testing.T) {
		body := `{"handle":"renamed","bio":"hi","techStack":["go"],"tier":"advanced","role":"contributor"}`
		rr := do(t, router, http.MethodPut, "/profiles", "alice", body)

		assert.Equal(t, http.StatusOK, rr.Code)
		var profile model.Profile
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&profile))
		assert.Equal(t, "hi", profile.Bio)
		assert.Equal(t, "alice-dev", profile.Handle)
	})

	t.Run("no profile for caller", func(t *testing.T) {
		rr := do(t, router, http.MethodPut, "/profiles", "stranger", aliceProfile)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
