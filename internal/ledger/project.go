package ledger

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/forgecredit/forgecredit/internal/apperror"
	"github.com/forgecredit/forgecredit/internal/event"
	"github.com/forgecredit/forgecredit/internal/model"
)

// RepoInput carries the maintainer-editable repo fields. ExternalID is only
// read on creation; it is immutable afterwards.
type RepoInput struct {
	ExternalID  string
	Name        string
	Description string
	TechStack   []string
	Topics      []string
	Homepage    string
	Stars       int
}

// IssueInput carries the fields for creating an issue.
type IssueInput struct {
	RepoID         uint64
	ExternalID     string
	Title          string
	Description    string
	Difficulty     model.Difficulty
	Labels         []string
	EstimatedHours int
	Bounty         int64
}

// IssueUpdate carries the maintainer-editable issue fields.
type IssueUpdate struct {
	Title          string
	Description    string
	Difficulty     model.Difficulty
	Labels         []string
	EstimatedHours int
	Bounty         int64
}

// ProjectStats are the incrementally maintained aggregates. Every issue
// transition adjusts them exactly once, so they always agree with a full
// recount.
type ProjectStats struct {
	TotalRepos        int   `json:"totalRepos"`
	ActiveRepos       int   `json:"activeRepos"`
	TotalIssues       int   `json:"totalIssues"`
	OpenIssues        int   `json:"openIssues"`
	CompletedIssues   int   `json:"completedIssues"`
	OutstandingBounty int64 `json:"outstandingBounty"`
}

// ProjectRegistry owns repos and issues, the issue state machine and
// maintainer ownership. AssignIssue may additionally be invoked by a holder
// of the issue-assigner capability (the application workflow).
type ProjectRegistry struct {
	mu     sync.Mutex
	acl    accessControl
	logger *slog.Logger
	sink   event.Sink

	repos          map[uint64]*model.Repo
	repoByExternal map[string]uint64
	repoOrder      []uint64
	nextRepoID     uint64

	issues          map[uint64]*model.Issue
	issueByExternal map[string]uint64
	issueOrder      []uint64
	nextIssueID     uint64

	// secondary indices for hot filters, kept in membership order
	repoTechIndex  map[string][]uint64
	repoTopicIndex map[string][]uint64
	issuesByRepo   map[uint64][]uint64
	issuesByStatus map[model.IssueStatus][]uint64
	issuesByWorker map[string][]uint64 // contributor -> assigned issue history

	stats ProjectStats
}

// NewProjectRegistry creates an empty registry administered by admin.
// sink may be nil.
func NewProjectRegistry(admin string, sink event.Sink, logger *slog.Logger) *ProjectRegistry {
	return &ProjectRegistry{
		acl:             newAccessControl(admin),
		logger:          logger,
		sink:            sink,
		repos:           make(map[uint64]*model.Repo),
		repoByExternal:  make(map[string]uint64),
		nextRepoID:      1,
		issues:          make(map[uint64]*model.Issue),
		issueByExternal: make(map[string]uint64),
		nextIssueID:     1,
		repoTechIndex:   make(map[string][]uint64),
		repoTopicIndex:  make(map[string][]uint64),
		issuesByRepo:    make(map[uint64][]uint64),
		issuesByStatus:  make(map[model.IssueStatus][]uint64),
		issuesByWorker:  make(map[string][]uint64),
	}
}

// Grant gives grantee a capability on this registry. Admin only.
func (r *ProjectRegistry) Grant(caller, grantee string, cap Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acl.grant(caller, grantee, cap)
}

// Revoke removes a capability. Admin only.
func (r *ProjectRegistry) Revoke(caller, grantee string, cap Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acl.revoke(caller, grantee, cap)
}

// HasCapability reports whether grantee currently holds cap.
func (r *ProjectRegistry) HasCapability(grantee string, cap Capability) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acl.has(grantee, cap)
}

// AddRepo registers a repo; the caller becomes its maintainer.
func (r *ProjectRegistry) AddRepo(caller string, in RepoInput) (*model.Repo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller == "" {
		return nil, apperror.InvalidInput("caller", "caller identity is required")
	}
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, apperror.InvalidInput("externalId", "external id is required")
	}
	if _, taken := r.repoByExternal[externalID]; taken {
		return nil, apperror.AlreadyExists("repo", externalID)
	}

	now := time.Now()
	repo := &model.Repo{
		ID:          r.nextRepoID,
		Maintainer:  caller,
		ExternalID:  externalID,
		Name:        in.Name,
		Description: in.Description,
		TechStack:   cloneStrings(in.TechStack),
		Topics:      cloneStrings(in.Topics),
		Homepage:    in.Homepage,
		Stars:       in.Stars,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.nextRepoID++
	r.repos[repo.ID] = repo
	r.repoByExternal[externalID] = repo.ID
	r.repoOrder = append(r.repoOrder, repo.ID)
	r.indexRepoTags(repo.ID, nil, nil, repo.TechStack, repo.Topics)
	r.stats.TotalRepos++
	r.stats.ActiveRepos++

	r.logger.Info("repo added",
		slog.Uint64("repoId", repo.ID),
		slog.String("maintainer", caller),
		slog.String("externalId", externalID),
	)
	r.emit(model.Event{Type: model.EventRepoAdded, Actor: caller, RepoID: repo.ID, At: now})
	return cloneRepo(repo), nil
}

// UpdateRepo replaces the mutable fields of a repo. Maintainer only.
func (r *ProjectRegistry) UpdateRepo(caller string, repoID uint64, in RepoInput) (*model.Repo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	repo, err := r.ownedRepo(caller, repoID)
	if err != nil {
		return nil, err
	}
	oldTech, oldTopics := repo.TechStack, repo.Topics
	repo.Name = in.Name
	repo.Description = in.Description
	repo.TechStack = cloneStrings(in.TechStack)
	repo.Topics = cloneStrings(in.Topics)
	repo.Homepage = in.Homepage
	repo.Stars = in.Stars
	repo.UpdatedAt = time.Now()
	r.indexRepoTags(repoID, oldTech, oldTopics, repo.TechStack, repo.Topics)

	r.emit(model.Event{Type: model.EventRepoUpdated, Actor: caller, RepoID: repoID, At: repo.UpdatedAt})
	return cloneRepo(repo), nil
}

// DeactivateRepo soft-deletes a repo. Deactivating an already-inactive repo
// is a no-op: the active-repo counter moves exactly once per real transition.
func (r *ProjectRegistry) DeactivateRepo(caller string, repoID uint64) error {
	return r.setRepoActive(caller, repoID, false)
}

// ReactivateRepo restores a deactivated repo. Idempotent like DeactivateRepo.
func (r *ProjectRegistry) ReactivateRepo(caller string, repoID uint64) error {
	return r.setRepoActive(caller, repoID, true)
}

func (r *ProjectRegistry) setRepoActive(caller string, repoID uint64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	repo, err := r.ownedRepo(caller, repoID)
	if err != nil {
		return err
	}
	if repo.Active == active {
		return nil
	}
	repo.Active = active
	repo.UpdatedAt = time.Now()
	eventType := model.EventRepoDeactivated
	if active {
		r.stats.ActiveRepos++
		eventType = model.EventRepoReactivated
	} else {
		r.stats.ActiveRepos--
	}
	r.emit(model.Event{Type: eventType, Actor: caller, RepoID: repoID, At: repo.UpdatedAt})
	return nil
}

// TransferOwnership hands a repo to a new maintainer. Maintainer only.
func (r *ProjectRegistry) TransferOwnership(caller string, repoID uint64, newMaintainer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	repo, err := r.ownedRepo(caller, repoID)
	if err != nil {
		return err
	}
	if newMaintainer == "" {
		return apperror.InvalidInput("maintainer", "new maintainer is required")
	}
	repo.Maintainer = newMaintainer
	repo.UpdatedAt = time.Now()
	r.emit(model.Event{
		Type:    model.EventRepoTransferred,
		Actor:   caller,
		Subject: newMaintainer,
		RepoID:  repoID,
		At:      repo.UpdatedAt,
	})
	return nil
}

// AddIssue creates an open issue on an active repo. Maintainer only.
func (r *ProjectRegistry) AddIssue(caller string, in IssueInput) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	repo, err := r.ownedRepo(caller, in.RepoID)
	if err != nil {
		return nil, err
	}
	if !repo.Active {
		return nil, apperror.InvalidState("repo is not active")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.InvalidInput("title", "title is required")
	}
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, apperror.InvalidInput("externalId", "external id is required")
	}
	if _, taken := r.issueByExternal[externalID]; taken {
		return nil, apperror.AlreadyExists("issue", externalID)
	}
	if err := validateDifficulty(in.Difficulty); err != nil {
		return nil, err
	}
	if in.Bounty < 0 {
		return nil, apperror.InvalidInput("bounty", "bounty must not be negative")
	}

	now := time.Now()
	issue := &model.Issue{
		ID:             r.nextIssueID,
		RepoID:         in.RepoID,
		ExternalID:     externalID,
		Title:          title,
		Description:    in.Description,
		Difficulty:     in.Difficulty,
		Status:         model.IssueOpen,
		Labels:         cloneStrings(in.Labels),
		EstimatedHours: in.EstimatedHours,
		Bounty:         in.Bounty,
		CreatedAt:      now,
	}
	r.nextIssueID++
	r.issues[issue.ID] = issue
	r.issueByExternal[externalID] = issue.ID
	r.issueOrder = append(r.issueOrder, issue.ID)
	r.issuesByRepo[in.RepoID] = append(r.issuesByRepo[in.RepoID], issue.ID)
	r.issuesByStatus[model.IssueOpen] = append(r.issuesByStatus[model.IssueOpen], issue.ID)
	r.stats.TotalIssues++
	r.stats.OpenIssues++
	r.stats.OutstandingBounty += in.Bounty

	r.logger.Info("issue added",
		slog.Uint64("issueId", issue.ID),
		slog.Uint64("repoId", in.RepoID),
		slog.Int64("bounty", in.Bounty),
	)
	r.emit(model.Event{Type: model.EventIssueAdded, Actor: caller, RepoID: in.RepoID, IssueID: issue.ID, At: now})
	return cloneIssue(issue), nil
}

// UpdateIssue replaces the mutable fields of a non-terminal issue and
// reconciles the outstanding bounty by the delta. Maintainer only.
func (r *ProjectRegistry) UpdateIssue(caller string, issueID uint64, in IssueUpdate) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, repo, err := r.issueAndRepo(issueID)
	if err != nil {
		return nil, err
	}
	if caller != repo.Maintainer {
		return nil, apperror.Unauthorized("caller is not the repo maintainer")
	}
	if issue.Status.Terminal() {
		return nil, apperror.InvalidState("issue is in a terminal state")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.InvalidInput("title", "title is required")
	}
	if err := validateDifficulty(in.Difficulty); err != nil {
		return nil, err
	}
	if in.Bounty < 0 {
		return nil, apperror.InvalidInput("bounty", "bounty must not be negative")
	}

	r.stats.OutstandingBounty += in.Bounty - issue.Bounty
	issue.Title = title
	issue.Description = in.Description
	issue.Difficulty = in.Difficulty
	issue.Labels = cloneStrings(in.Labels)
	issue.EstimatedHours = in.EstimatedHours
	issue.Bounty = in.Bounty

	r.emit(model.Event{Type: model.EventIssueUpdated, Actor: caller, RepoID: issue.RepoID, IssueID: issueID, At: time.Now()})
	return cloneIssue(issue), nil
}

// AssignIssue moves an open issue to Assigned. Authorized callers are the
// repo's maintainer and holders of the issue-assigner capability.
func (r *ProjectRegistry) AssignIssue(caller string, issueID uint64, contributor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, repo, err := r.issueAndRepo(issueID)
	if err != nil {
		return err
	}
	if caller != repo.Maintainer && !r.acl.has(caller, CapIssueAssigner) {
		return apperror.Unauthorized("caller may not assign this issue")
	}
	if issue.Status != model.IssueOpen {
		return apperror.InvalidState("issue is not open")
	}
	if contributor == "" {
		return apperror.InvalidInput("contributor", "contributor is required")
	}

	r.setStatus(issue, model.IssueAssigned)
	issue.Assignee = contributor
	issue.AssignedAt = time.Now()
	r.stats.OpenIssues--
	r.issuesByWorker[contributor] = append(r.issuesByWorker[contributor], issueID)

	r.emit(model.Event{
		Type:    model.EventIssueAssigned,
		Actor:   caller,
		Subject: contributor,
		RepoID:  issue.RepoID,
		IssueID: issueID,
		At:      issue.AssignedAt,
	})
	return nil
}

// StartIssue moves an assigned issue to InProgress. Assignee only.
func (r *ProjectRegistry) StartIssue(caller string, issueID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, _, err := r.issueAndRepo(issueID)
	if err != nil {
		return err
	}
	if caller == "" || caller != issue.Assignee {
		return apperror.Unauthorized("caller is not the assigned contributor")
	}
	if issue.Status != model.IssueAssigned {
		return apperror.InvalidState("issue is not assigned")
	}

	r.setStatus(issue, model.IssueInProgress)
	r.emit(model.Event{
		Type:    model.EventIssueStarted,
		Actor:   caller,
		RepoID:  issue.RepoID,
		IssueID: issueID,
		At:      time.Now(),
	})
	return nil
}

// CompleteIssue moves an in-progress issue to Completed. Maintainer only.
func (r *ProjectRegistry) CompleteIssue(caller string, issueID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, repo, err := r.issueAndRepo(issueID)
	if err != nil {
		return err
	}
	if caller != repo.Maintainer {
		return apperror.Unauthorized("caller is not the repo maintainer")
	}
	if issue.Status != model.IssueInProgress {
		return apperror.InvalidState("issue is not in progress")
	}

	r.setStatus(issue, model.IssueCompleted)
	issue.CompletedAt = time.Now()
	r.stats.CompletedIssues++
	r.stats.OutstandingBounty -= issue.Bounty

	r.emit(model.Event{
		Type:    model.EventIssueCompleted,
		Actor:   caller,
		Subject: issue.Assignee,
		RepoID:  issue.RepoID,
		IssueID: issueID,
		At:      issue.CompletedAt,
	})
	return nil
}

// CloseIssue terminates a non-terminal issue without completion.
// Maintainer only.
func (r *ProjectRegistry) CloseIssue(caller string, issueID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, repo, err := r.issueAndRepo(issueID)
	if err != nil {
		return err
	}
	if caller != repo.Maintainer {
		return apperror.Unauthorized("caller is not the repo maintainer")
	}
	if issue.Status.Terminal() {
		return apperror.InvalidState("issue is in a terminal state")
	}

	if issue.Status == model.IssueOpen {
		r.stats.OpenIssues--
	}
	r.stats.OutstandingBounty -= issue.Bounty
	r.setStatus(issue, model.IssueClosed)

	r.emit(model.Event{Type: model.EventIssueClosed, Actor: caller, RepoID: issue.RepoID, IssueID: issueID, At: time.Now()})
	return nil
}

// UnassignIssue returns an assigned or in-progress issue to Open and clears
// the assignee. Maintainer only; not permitted once terminal.
func (r *ProjectRegistry) UnassignIssue(caller string, issueID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, repo, err := r.issueAndRepo(issueID)
	if err != nil {
		return err
	}
	if caller != repo.Maintainer {
		return apperror.Unauthorized("caller is not the repo maintainer")
	}
	if issue.Status != model.IssueAssigned && issue.Status != model.IssueInProgress {
		return apperror.InvalidState("issue is not assigned")
	}

	contributor := issue.Assignee
	r.setStatus(issue, model.IssueOpen)
	issue.Assignee = ""
	issue.AssignedAt = time.Time{}
	r.stats.OpenIssues++
	r.issuesByWorker[contributor] = removeID(r.issuesByWorker[contributor], issueID)

	r.emit(model.Event{
		Type:    model.EventIssueUnassigned,
		Actor:   caller,
		Subject: contributor,
		RepoID:  issue.RepoID,
		IssueID: issueID,
		At:      time.Now(),
	})
	return nil
}

// GetRepo returns a repo by internal ID.
func (r *ProjectRegistry) GetRepo(repoID uint64) (*model.Repo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	repo, ok := r.repos[repoID]
	if !ok {
		return nil, apperror.NotFound("repo", repoID)
	}
	return cloneRepo(repo), nil
}

// GetRepoByExternalID resolves an external identifier to its repo.
func (r *ProjectRegistry) GetRepoByExternalID(externalID string) (*model.Repo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.repoByExternal[externalID]
	if !ok {
		return nil, apperror.NotFound("repo", externalID)
	}
	return cloneRepo(r.repos[id]), nil
}

// GetIssue returns an issue by internal ID.
func (r *ProjectRegistry) GetIssue(issueID uint64) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok {
		return nil, apperror.NotFound("issue", issueID)
	}
	return cloneIssue(issue), nil
}

// GetIssueByExternalID resolves an external identifier to its issue.
func (r *ProjectRegistry) GetIssueByExternalID(externalID string) (*model.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.issueByExternal[externalID]
	if !ok {
		return nil, apperror.NotFound("issue", externalID)
	}
	return cloneIssue(r.issues[id]), nil
}

// RepoIDs returns all repo IDs in creation order.
func (r *ProjectRegistry) RepoIDs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return pageSlice(r.repoOrder, 0, 0)
}

// IssueIDs returns all issue IDs in creation order.
func (r *ProjectRegistry) IssueIDs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return pageSlice(r.issueOrder, 0, 0)
}

// ReposByMaintainer returns the repos owned by maintainer, in creation order.
func (r *ProjectRegistry) ReposByMaintainer(maintainer string) []model.Repo {
	return r.filterRepos(func(repo *model.Repo) bool { return repo.Maintainer == maintainer })
}

// ReposByTech returns repos whose tech stack contains tag (exact match).
func (r *ProjectRegistry) ReposByTech(tag string) []model.Repo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collectRepos(r.repoTechIndex[tag])
}

// ReposByTopic returns repos tagged with topic (exact match).
func (r *ProjectRegistry) ReposByTopic(topic string) []model.Repo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collectRepos(r.repoTopicIndex[topic])
}

// ActiveRepos returns all active repos in creation order.
func (r *ProjectRegistry) ActiveRepos() []model.Repo {
	return r.filterRepos(func(repo *model.Repo) bool { return repo.Active })
}

// ActiveReposPage returns a window of the active repos. The window is cut
// after filtering, so paging never changes which repos qualify.
func (r *ProjectRegistry) ActiveReposPage(offset, limit int) []model.Repo {
	return pageSlice(r.ActiveRepos(), offset, limit)
}

// IssuesByRepo returns a repo's issues in creation order.
func (r *ProjectRegistry) IssuesByRepo(repoID uint64) []model.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collectIssues(r.issuesByRepo[repoID])
}

// IssuesByStatus returns all issues currently in status, ordered by when
// they entered it.
func (r *ProjectRegistry) IssuesByStatus(status model.IssueStatus) []model.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collectIssues(r.issuesByStatus[status])
}

// IssuesByDifficulty returns issues of one difficulty in creation order.
func (r *ProjectRegistry) IssuesByDifficulty(d model.Difficulty) []model.Issue {
	return r.filterIssues(func(i *model.Issue) bool { return i.Difficulty == d })
}

// IssuesWithBounty returns issues carrying a positive bounty, in creation order.
func (r *ProjectRegistry) IssuesWithBounty() []model.Issue {
	return r.filterIssues(func(i *model.Issue) bool { return i.Bounty > 0 })
}

// IssuesByContributor returns every issue ever assigned to contributor that
// is still attributed to them, in assignment order.
func (r *ProjectRegistry) IssuesByContributor(contributor string) []model.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collectIssues(r.issuesByWorker[contributor])
}

// ContributorActiveIssues returns the contributor's Assigned and InProgress
// issues, in assignment order.
func (r *ProjectRegistry) ContributorActiveIssues(contributor string) []model.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Issue{}
	for _, id := range r.issuesByWorker[contributor] {
		issue := r.issues[id]
		if issue.Status == model.IssueAssigned || issue.Status == model.IssueInProgress {
			out = append(out, *cloneIssue(issue))
		}
	}
	return out
}

// ContributorCompletedIssues returns the contributor's completed issues,
// in assignment order.
func (r *ProjectRegistry) ContributorCompletedIssues(contributor string) []model.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Issue{}
	for _, id := range r.issuesByWorker[contributor] {
		issue := r.issues[id]
		if issue.Status == model.IssueCompleted {
			out = append(out, *cloneIssue(issue))
		}
	}
	return out
}

// Stats returns the incrementally maintained aggregates.
func (r *ProjectRegistry) Stats() ProjectStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *ProjectRegistry) ownedRepo(caller string, repoID uint64) (*model.Repo, error) {
	repo, ok := r.repos[repoID]
	if !ok {
		return nil, apperror.NotFound("repo", repoID)
	}
	if caller != repo.Maintainer {
		return nil, apperror.Unauthorized("caller is not the repo maintainer")
	}
	return repo, nil
}

func (r *ProjectRegistry) issueAndRepo(issueID uint64) (*model.Issue, *model.Repo, error) {
	issue, ok := r.issues[issueID]
	if !ok {
		return nil, nil, apperror.NotFound("issue", issueID)
	}
	return issue, r.repos[issue.RepoID], nil
}

// setStatus moves an issue between the per-status index lists.
func (r *ProjectRegistry) setStatus(issue *model.Issue, status model.IssueStatus) {
	r.issuesByStatus[issue.Status] = removeID(r.issuesByStatus[issue.Status], issue.ID)
	r.issuesByStatus[status] = append(r.issuesByStatus[status], issue.ID)
	issue.Status = status
}

// indexRepoTags reconciles the tech and topic indices after a tag change.
func (r *ProjectRegistry) indexRepoTags(repoID uint64, oldTech, oldTopics, newTech, newTopics []string) {
	reindex := func(index map[string][]uint64, old, cur []string) {
		for _, tag := range old {
			if !containsString(cur, tag) {
				index[tag] = removeID(index[tag], repoID)
			}
		}
		for _, tag := range cur {
			if !containsString(old, tag) {
				index[tag] = append(index[tag], repoID)
			}
		}
	}
	reindex(r.repoTechIndex, oldTech, newTech)
	reindex(r.repoTopicIndex, oldTopics, newTopics)
}

func (r *ProjectRegistry) filterRepos(keep func(*model.Repo) bool) []model.Repo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Repo{}
	for _, id := range r.repoOrder {
		if repo := r.repos[id]; keep(repo) {
			out = append(out, *cloneRepo(repo))
		}
	}
	return out
}

func (r *ProjectRegistry) filterIssues(keep func(*model.Issue) bool) []model.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Issue{}
	for _, id := range r.issueOrder {
		if issue := r.issues[id]; keep(issue) {
			out = append(out, *cloneIssue(issue))
		}
	}
	return out
}

func (r *ProjectRegistry) collectRepos(ids []uint64) []model.Repo {
	out := make([]model.Repo, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneRepo(r.repos[id]))
	}
	return out
}

func (r *ProjectRegistry) collectIssues(ids []uint64) []model.Issue {
	out := make([]model.Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneIssue(r.issues[id]))
	}
	return out
}

func (r *ProjectRegistry) emit(e model.Event) {
	if r.sink == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	r.sink.Record(e)
}

func validateDifficulty(d model.Difficulty) error {
	switch d {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		return nil
	}
	return apperror.InvalidInput("difficulty", "unknown difficulty")
}

func cloneRepo(repo *model.Repo) *model.Repo {
	out := *repo
	out.TechStack = cloneStrings(repo.TechStack)
	out.Topics = cloneStrings(repo.Topics)
	return &out
}

func cloneIssue(issue *model.Issue) *model.Issue {
	out := *issue
	out.Labels = cloneStrings(issue.Labels)
	return &out
}
