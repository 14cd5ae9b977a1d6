package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgecredit/forgecredit/internal/ledger"
	"github.com/forgecredit/forgecredit/internal/model"
)

// WorkflowHandler serves application routes.
type WorkflowHandler struct {
	workflow *ledger.ApplicationWorkflow
}

func NewWorkflowHandler(workflow *ledger.ApplicationWorkflow) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

type applyRequest struct {
	IssueID    uint64 `json:"issueId"`
	Message    string `json:"message"`
	MatchScore int    `json:"matchScore"`
}

func (h *WorkflowHandler) Apply(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req applyRequest
	if !decode(w, r, &req) {
		return
	}
	app, err := h.workflow.Apply(c, req.IssueID, req.Message, req.MatchScore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *WorkflowHandler) Accept(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "appID")
	if !ok {
		return
	}
	if err := h.workflow.Accept(c, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *WorkflowHandler) Reject(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "appID")
	if !ok {
		return
	}
	var req rejectRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.workflow.Reject(c, id, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WorkflowHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "appID")
	if !ok {
		return
	}
	if err := h.workflow.Withdraw(c, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type batchReviewRequest struct {
	ApplicationIDs []uint64 `json:"applicationIds"`
	Accept         bool     `json:"accept"`
	Reason         string   `json:"reason"`
}

func (h *WorkflowHandler) BatchReview(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req batchReviewRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.workflow.BatchReview(c, req.ApplicationIDs, req.Accept, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "appID")
	if !ok {
		return
	}
	app, err := h.workflow.GetApplication(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *WorkflowHandler) ByIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "issueID")
	if !ok {
		return
	}
	if r.URL.Query().Get("pending") == "true" {
		writeJSON(w, http.StatusOK, h.workflow.PendingByIssue(id))
		return
	}
	writeJSON(w, http.StatusOK, h.workflow.ApplicationsByIssue(id))
}

func (h *WorkflowHandler) ByContributor(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	if status := r.URL.Query().Get("status"); status != "" {
		apps := h.workflow.ApplicationsByContributorStatus(owner, model.ApplicationStatus(status))
		writeJSON(w, http.StatusOK, apps)
		return
	}
	writeJSON(w, http.StatusOK, h.workflow.ApplicationsByContributor(owner))
}

func (h *WorkflowHandler) PendingForMaintainer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.workflow.PendingForMaintainer(chi.URLParam(r, "owner")))
}

func (h *WorkflowHandler) TopApplicants(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "issueID")
	if !ok {
		return
	}
	n := intParam(r, "n", 5)
	writeJSON(w, http.StatusOK, h.workflow.TopApplicants(id, n))
}
