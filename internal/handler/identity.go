package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgecredit/forgecredit/internal/ledger"
	"github.com/forgecredit/forgecredit/internal/model"
)

// IdentityHandler serves profile and reputation routes.
type IdentityHandler struct {
	registry *ledger.IdentityRegistry
}

func NewIdentityHandler(registry *ledger.IdentityRegistry) *IdentityHandler {
	return &IdentityHandler{registry: registry}
}

type profileRequest struct {
	Handle    string   `json:"handle"`
	Bio       string   `json:"bio"`
	TechStack []string `json:"techStack"`
	Topics    []string `json:"topics"`
	Tier      string   `json:"tier"`
	Role      string   `json:"role"`
}

func (req profileRequest) input() ledger.ProfileInput {
	return ledger.ProfileInput{
		Handle:    req.Handle,
		Bio:       req.Bio,
		TechStack: req.TechStack,
		Topics:    req.Topics,
		Tier:      model.ExperienceTier(req.Tier),
		Role:      model.Role(req.Role),
	}
}

func (h *IdentityHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	profile, err := h.registry.CreateProfile(c, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (h *IdentityHandler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	profile, err := h.registry.UpdateProfile(c, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *IdentityHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.registry.GetProfile(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *IdentityHandler) GetByHandle(w http.ResponseWriter, r *http.Request) {
	profile, err := h.registry.GetProfileByHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// List filters the roster by at most one of tech, topic or tier; with no
// filter it pages through the full roster.
func (h *IdentityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("tech") != "":
		writeJSON(w, http.StatusOK, h.registry.FilterByTech(q.Get("tech")))
	case q.Get("topic") != "":
		writeJSON(w, http.StatusOK, h.registry.FilterByTopic(q.Get("topic")))
	case q.Get("tier") != "":
		writeJSON(w, http.StatusOK, h.registry.FilterByTier(model.ExperienceTier(q.Get("tier"))))
	default:
		offset, limit := pageParams(r)
		writeJSON(w, http.StatusOK, h.registry.RosterPage(offset, limit))
	}
}

func (h *IdentityHandler) Top(w http.ResponseWriter, r *http.Request) {
	n := intParam(r, "n", 10)
	writeJSON(w, http.StatusOK, h.registry.TopByReputation(n))
}

func (h *IdentityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Stats())
}

type setReputationRequest struct {
	Score int64 `json:"score"`
}

func (h *IdentityHandler) SetReputation(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req setReputationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.registry.AdminSetReputation(c, chi.URLParam(r, "owner"), req.Score); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type grantRequest struct {
	Grantee    string `json:"grantee"`
	Capability string `json:"capability"`
}

func (h *IdentityHandler) Grant(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.registry.Grant(c, req.Grantee, ledger.Capability(req.Capability)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *IdentityHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.registry.Revoke(c, req.Grantee, ledger.Capability(req.Capability)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
