package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgecredit/forgecredit/internal/ledger"
	"github.com/forgecredit/forgecredit/internal/model"
)

// ProjectHandler serves repository and issue routes.
type ProjectHandler struct {
	registry *ledger.ProjectRegistry
}

func NewProjectHandler(registry *ledger.ProjectRegistry) *ProjectHandler {
	return &ProjectHandler{registry: registry}
}

type repoRequest struct {
	ExternalID  string   `json:"externalId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TechStack   []string `json:"techStack"`
	Topics      []string `json:"topics"`
	Homepage    string   `json:"homepage"`
	Stars       int      `json:"stars"`
}

func (req repoRequest) input() ledger.RepoInput {
	return ledger.RepoInput{
		ExternalID:  req.ExternalID,
		Name:        req.Name,
		Description: req.Description,
		TechStack:   req.TechStack,
		Topics:      req.Topics,
		Homepage:    req.Homepage,
		Stars:       req.Stars,
	}
}

func (h *ProjectHandler) CreateRepo(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req repoRequest
	if !decode(w, r, &req) {
		return
	}
	repo, err := h.registry.AddRepo(c, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

func (h *ProjectHandler) UpdateRepo(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "repoID")
	if !ok {
		return
	}
	var req repoRequest
	if !decode(w, r, &req) {
		return
	}
	repo, err := h.registry.UpdateRepo(c, id, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (h *ProjectHandler) GetRepo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "repoID")
	if !ok {
		return
	}
	repo, err := h.registry.GetRepo(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

// ListRepos filters by at most one of maintainer, tech or topic; with no
// filter it pages through active repos.
func (h *ProjectHandler) ListRepos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("maintainer") != "":
		writeJSON(w, http.StatusOK, h.registry.ReposByMaintainer(q.Get("maintainer")))
	case q.Get("tech") != "":
		writeJSON(w, http.StatusOK, h.registry.ReposByTech(q.Get("tech")))
	case q.Get("topic") != "":
		writeJSON(w, http.StatusOK, h.registry.ReposByTopic(q.Get("topic")))
	default:
		offset, limit := pageParams(r)
		writeJSON(w, http.StatusOK, h.registry.ActiveReposPage(offset, limit))
	}
}

// RepoByExternalID resolves a repo by its upstream identifier. External IDs
// contain slashes, so they travel as a query parameter.
func (h *ProjectHandler) RepoByExternalID(w http.ResponseWriter, r *http.Request) {
	external := r.URL.Query().Get("externalId")
	if external == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: "externalId query parameter is required",
		})
		return
	}
	repo, err := h.registry.GetRepoByExternalID(external)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (h *ProjectHandler) IssueByExternalID(w http.ResponseWriter, r *http.Request) {
	external := r.URL.Query().Get("externalId")
	if external == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: "externalId query parameter is required",
		})
		return
	}
	issue, err := h.registry.GetIssueByExternalID(external)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (h *ProjectHandler) DeactivateRepo(w http.ResponseWriter, r *http.Request) {
	h.setRepoActive(w, r, false)
}

func (h *ProjectHandler) ReactivateRepo(w http.ResponseWriter, r *http.Request) {
	h.setRepoActive(w, r, true)
}

func (h *ProjectHandler) setRepoActive(w http.ResponseWriter, r *http.Request, active bool) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "repoID")
	if !ok {
		return
	}
	var err error
	if active {
		err = h.registry.ReactivateRepo(c, id)
	} else {
		err = h.registry.DeactivateRepo(c, id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type transferRequest struct {
	NewMaintainer string `json:"newMaintainer"`
}

func (h *ProjectHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "repoID")
	if !ok {
		return
	}
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.registry.TransferOwnership(c, id, req.NewMaintainer); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type issueRequest struct {
	RepoID         uint64   `json:"repoId"`
	ExternalID     string   `json:"externalId"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Difficulty     string   `json:"difficulty"`
	Labels         []string `json:"labels"`
	EstimatedHours int      `json:"estimatedHours"`
	Bounty         int64    `json:"bounty"`
}

func (h *ProjectHandler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req issueRequest
	if !decode(w, r, &req) {
		return
	}
	issue, err := h.registry.AddIssue(c, ledger.IssueInput{
		RepoID:         req.RepoID,
		ExternalID:     req.ExternalID,
		Title:          req.Title,
		Description:    req.Description,
		Difficulty:     model.Difficulty(req.Difficulty),
		Labels:         req.Labels,
		EstimatedHours: req.EstimatedHours,
		Bounty:         req.Bounty,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (h *ProjectHandler) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "issueID")
	if !ok {
		return
	}
	var req issueRequest
	if !decode(w, r, &req) {
		return
	}
	issue, err := h.registry.UpdateIssue(c, id, ledger.IssueUpdate{
		Title:          req.Title,
		Description:    req.Description,
		Difficulty:     model.Difficulty(req.Difficulty),
		Labels:         req.Labels,
		EstimatedHours: req.EstimatedHours,
		Bounty:         req.Bounty,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (h *ProjectHandler) GetIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "issueID")
	if !ok {
		return
	}
	issue, err := h.registry.GetIssue(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// ListIssues filters by at most one of repo, status, difficulty, contributor
// or the bounty flag.
func (h *ProjectHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("repo") != "":
		id, ok := pathIDValue(w, q.Get("repo"), "repo")
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, h.registry.IssuesByRepo(id))
	case q.Get("status") != "":
		writeJSON(w, http.StatusOK, h.registry.IssuesByStatus(model.IssueStatus(q.Get("status"))))
	case q.Get("difficulty") != "":
		writeJSON(w, http.StatusOK, h.registry.IssuesByDifficulty(model.Difficulty(q.Get("difficulty"))))
	case q.Get("contributor") != "":
		writeJSON(w, http.StatusOK, h.registry.IssuesByContributor(q.Get("contributor")))
	case q.Get("bounty") == "true":
		writeJSON(w, http.StatusOK, h.registry.IssuesWithBounty())
	default:
		writeJSON(w, http.StatusOK, h.registry.IssuesByStatus(model.IssueOpen))
	}
}

type assignRequest struct {
	Contributor string `json:"contributor"`
}

func (h *ProjectHandler) AssignIssue(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "issueID")
	if !ok {
		return
	}
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.registry.AssignIssue(c, id, req.Contributor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ProjectHandler) StartIssue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.registry.StartIssue)
}

func (h *ProjectHandler) CompleteIssue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.registry.CompleteIssue)
}

func (h *ProjectHandler) CloseIssue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.registry.CloseIssue)
}

func (h *ProjectHandler) UnassignIssue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.registry.UnassignIssue)
}

func (h *ProjectHandler) transition(w http.ResponseWriter, r *http.Request, op func(string, uint64) error) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "issueID")
	if !ok {
		return
	}
	if err := op(c, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ProjectHandler) ContributorActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.ContributorActiveIssues(chi.URLParam(r, "owner")))
}

func (h *ProjectHandler) ContributorCompleted(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.ContributorCompletedIssues(chi.URLParam(r, "owner")))
}

func (h *ProjectHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Stats())
}
