package ledger

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgecredit/forgecredit/internal/apperror"
	"github.com/forgecredit/forgecredit/internal/event"
	"github.com/forgecredit/forgecredit/internal/model"
)

// Rejection reasons written by the workflow itself.
const (
	ReasonSuperseded = "another applicant was selected"
	ReasonWithdrawn  = "withdrawn by applicant"
)

// WorkflowConfig bounds the application pipeline.
type WorkflowConfig struct {
	// ComponentID is the identity under which the workflow invokes
	// ProjectRegistry.AssignIssue; it must be granted the issue-assigner
	// capability there.
	ComponentID string
	// MinMatchScore is the lowest externally supplied match score accepted
	// on submission.
	MinMatchScore int
	// MaxPerIssue caps how many applications one issue can accumulate.
	MaxPerIssue int
}

// ApplicationWorkflow mediates contributor applications to issues. It reads
// the identity and project registries and, on acceptance, assigns the issue
// through its granted capability.
type ApplicationWorkflow struct {
	mu       sync.Mutex
	logger   *slog.Logger
	sink     event.Sink
	identity *IdentityRegistry
	projects *ProjectRegistry
	cfg      WorkflowConfig

	apps            map[uint64]*model.Application
	appOrder        []uint64
	appsByIssue     map[uint64][]uint64
	appsByApplicant map[string][]uint64
	// activeApp marks the single non-rejected application per
	// (issue, contributor) pair; rejection and withdrawal clear it,
	// permitting reapplication.
	activeApp map[appKey]uint64
	nextID    uint64
}

type appKey struct {
	issueID     uint64
	contributor string
}

// NewApplicationWorkflow wires the workflow to its registries. sink may be nil.
func NewApplicationWorkflow(identity *IdentityRegistry, projects *ProjectRegistry, cfg WorkflowConfig, sink event.Sink, logger *slog.Logger) *ApplicationWorkflow {
	return &ApplicationWorkflow{
		logger:          logger,
		sink:            sink,
		identity:        identity,
		projects:        projects,
		cfg:             cfg,
		apps:            make(map[uint64]*model.Application),
		appsByIssue:     make(map[uint64][]uint64),
		appsByApplicant: make(map[string][]uint64),
		activeApp:       make(map[appKey]uint64),
		nextID:          1,
	}
}

// Apply submits a pending application by the caller for an open issue.
func (w *ApplicationWorkflow) Apply(caller string, issueID uint64, message string, matchScore int) (*model.Application, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	profile, err := w.identity.GetProfile(caller)
	if err != nil {
		return nil, apperror.Unauthorized("a profile is required to apply")
	}
	if profile.Role == model.RoleMaintainer {
		return nil, apperror.Unauthorized("maintainer-only profiles cannot apply")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.InvalidInput("message", "message is required")
	}
	if matchScore < 0 || matchScore > 100 {
		return nil, apperror.InvalidInput("matchScore", "match score must be between 0 and 100")
	}
	if matchScore < w.cfg.MinMatchScore {
		return nil, apperror.InvalidInput("matchScore", "match score below the submission minimum")
	}
	issue, err := w.projects.GetIssue(issueID)
	if err != nil {
		return nil, err
	}
	if issue.Status != model.IssueOpen {
		return nil, apperror.InvalidState("issue is not open for applications")
	}
	key := appKey{issueID: issueID, contributor: caller}
	if _, active := w.activeApp[key]; active {
		return nil, apperror.AlreadyExists("application", fmt.Sprintf("issue %d by %s", issueID, caller))
	}
	if w.cfg.MaxPerIssue > 0 && len(w.appsByIssue[issueID]) >= w.cfg.MaxPerIssue {
		return nil, apperror.LimitExceeded("issue has reached its application cap")
	}

	app := &model.Application{
		ID:          w.nextID,
		IssueID:     issueID,
		Contributor: caller,
		Message:     message,
		MatchScore:  matchScore,
		Status:      model.ApplicationPending,
		CreatedAt:   time.Now(),
	}
	w.nextID++
	w.apps[app.ID] = app
	w.appOrder = append(w.appOrder, app.ID)
	w.appsByIssue[issueID] = append(w.appsByIssue[issueID], app.ID)
	w.appsByApplicant[caller] = append(w.appsByApplicant[caller], app.ID)
	w.activeApp[key] = app.ID

	w.logger.Info("application submitted",
		slog.Uint64("applicationId", app.ID),
		slog.Uint64("issueId", issueID),
		slog.String("contributor", caller),
		slog.Int("matchScore", matchScore),
	)
	w.emit(model.Event{
		Type:          model.EventApplicationSubmitted,
		Actor:         caller,
		IssueID:       issueID,
		ApplicationID: app.ID,
		At:            app.CreatedAt,
	})
	return cloneApplication(app), nil
}

// Accept approves a pending application: the issue is assigned through the
// workflow's capability and every other pending application on the same
// issue is rejected with ReasonSuperseded, freeing those contributors to
// apply elsewhere. Only the maintainer of the issue's repo may accept.
func (w *ApplicationWorkflow) Accept(caller string, appID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	app, ok := w.apps[appID]
	if !ok {
		return apperror.NotFound("application", appID)
	}
	if app.Status != model.ApplicationPending {
		return apperror.InvalidState("application is not pending")
	}
	issue, err := w.projects.GetIssue(app.IssueID)
	if err != nil {
		return err
	}
	repo, err := w.projects.GetRepo(issue.RepoID)
	if err != nil {
		return err
	}
	if caller != repo.Maintainer {
		return apperror.Unauthorized("caller is not the repo maintainer")
	}

	// The assignment is the only sub-step that can fail; nothing in the
	// workflow is mutated before it succeeds.
	if err := w.projects.AssignIssue(w.cfg.ComponentID, app.IssueID, app.Contributor); err != nil {
		return err
	}

	now := time.Now()
	app.Status = model.ApplicationAccepted
	app.ReviewedAt = now
	w.emit(model.Event{
		Type:          model.EventApplicationAccepted,
		Actor:         caller,
		Subject:       app.Contributor,
		IssueID:       app.IssueID,
		ApplicationID: app.ID,
		At:            now,
	})

	for _, otherID := range w.appsByIssue[app.IssueID] {
		other := w.apps[otherID]
		if otherID == appID || other.Status != model.ApplicationPending {
			continue
		}
		other.Status = model.ApplicationRejected
		other.RejectionReason = ReasonSuperseded
		other.ReviewedAt = now
		delete(w.activeApp, appKey{issueID: other.IssueID, contributor: other.Contributor})
		w.emit(model.Event{
			Type:          model.EventApplicationRejected,
			Actor:         caller,
			Subject:       other.Contributor,
			IssueID:       other.IssueID,
			ApplicationID: other.ID,
			At:            now,
		})
	}

	w.logger.Info("application accepted",
		slog.Uint64("applicationId", appID),
		slog.Uint64("issueId", app.IssueID),
		slog.String("contributor", app.Contributor),
	)
	return nil
}

// Reject declines a pending application. Only the maintainer of the issue's
// repo may reject; the contributor becomes free to reapply.
func (w *ApplicationWorkflow) Reject(caller string, appID uint64, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	app, ok := w.apps[appID]
	if !ok {
		return apperror.NotFound("application", appID)
	}
	if app.Status != model.ApplicationPending {
		return apperror.InvalidState("application is not pending")
	}
	issue, err := w.projects.GetIssue(app.IssueID)
	if err != nil {
		return err
	}
	repo, err := w.projects.GetRepo(issue.RepoID)
	if err != nil {
		return err
	}
	if caller != repo.Maintainer {
		return apperror.Unauthorized("caller is not the repo maintainer")
	}

	w.conclude(app, reason, model.EventApplicationRejected, caller)
	return nil
}

// Withdraw retracts the caller's own pending application.
func (w *ApplicationWorkflow) Withdraw(caller string, appID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	app, ok := w.apps[appID]
	if !ok {
		return apperror.NotFound("application", appID)
	}
	if caller != app.Contributor {
		return apperror.Unauthorized("caller is not the applicant")
	}
	if app.Status != model.ApplicationPending {
		return apperror.InvalidState("application is not pending")
	}

	w.conclude(app, ReasonWithdrawn, model.EventApplicationWithdrawn, caller)
	return nil
}

// conclude finishes a pending application as rejected and clears the
// has-applied marker. Caller holds w.mu.
func (w *ApplicationWorkflow) conclude(app *model.Application, reason, eventType, actor string) {
	now := time.Now()
	app.Status = model.ApplicationRejected
	app.RejectionReason = reason
	app.ReviewedAt = now
	delete(w.activeApp, appKey{issueID: app.IssueID, contributor: app.Contributor})
	w.emit(model.Event{
		Type:          eventType,
		Actor:         actor,
		Subject:       app.Contributor,
		IssueID:       app.IssueID,
		ApplicationID: app.ID,
		At:            now,
	})
}

// BatchReview accepts or rejects each listed application in order. The batch
// stops at the first failure and returns it; sub-operations already applied
// keep their side effects.
func (w *ApplicationWorkflow) BatchReview(caller string, appIDs []uint64, accept bool, reason string) error {
	if len(appIDs) == 0 {
		return apperror.InvalidInput("applications", "no applications given")
	}
	for _, id := range appIDs {
		var err error
		if accept {
			err = w.Accept(caller, id)
		} else {
			err = w.Reject(caller, id, reason)
		}
		if err != nil {
			return fmt.Errorf("application %d: %w", id, err)
		}
	}
	return nil
}

// GetApplication returns an application by ID.
func (w *ApplicationWorkflow) GetApplication(appID uint64) (*model.Application, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	app, ok := w.apps[appID]
	if !ok {
		return nil, apperror.NotFound("application", appID)
	}
	return cloneApplication(app), nil
}

// ApplicationsByIssue returns every application for an issue, in submission order.
func (w *ApplicationWorkflow) ApplicationsByIssue(issueID uint64) []model.Application {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collect(w.appsByIssue[issueID], "")
}

// PendingByIssue returns the pending applications for an issue, in
// submission order.
func (w *ApplicationWorkflow) PendingByIssue(issueID uint64) []model.Application {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collect(w.appsByIssue[issueID], model.ApplicationPending)
}

// ApplicationsByContributor returns the contributor's applications, in
// submission order.
func (w *ApplicationWorkflow) ApplicationsByContributor(contributor string) []model.Application {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collect(w.appsByApplicant[contributor], "")
}

// ApplicationsByContributorStatus filters the contributor's applications by
// status, in submission order.
func (w *ApplicationWorkflow) ApplicationsByContributorStatus(contributor string, status model.ApplicationStatus) []model.Application {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collect(w.appsByApplicant[contributor], status)
}

// PendingForMaintainer aggregates the pending applications across every
// issue of every repo the maintainer owns, in repo/issue/submission order.
func (w *ApplicationWorkflow) PendingForMaintainer(maintainer string) []model.Application {
	repos := w.projects.ReposByMaintainer(maintainer)

	w.mu.Lock()
	defer w.mu.Unlock()
	out := []model.Application{}
	for _, repo := range repos {
		for _, issue := range w.projects.IssuesByRepo(repo.ID) {
			out = append(out, w.collect(w.appsByIssue[issue.ID], model.ApplicationPending)...)
		}
	}
	return out
}

// TopApplicants returns up to n pending applications for an issue ranked by
// match score, descending; equal scores keep submission order.
func (w *ApplicationWorkflow) TopApplicants(issueID uint64, n int) []model.Application {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending := w.collect(w.appsByIssue[issueID], model.ApplicationPending)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].MatchScore > pending[j].MatchScore
	})
	if n > 0 && n < len(pending) {
		pending = pending[:n]
	}
	return pending
}

// collect copies the applications named by ids, optionally filtered by
// status. Caller holds w.mu.
func (w *ApplicationWorkflow) collect(ids []uint64, status model.ApplicationStatus) []model.Application {
	out := []model.Application{}
	for _, id := range ids {
		app := w.apps[id]
		if status != "" && app.Status != status {
			continue
		}
		out = append(out, *cloneApplication(app))
	}
	return out
}

func (w *ApplicationWorkflow) emit(e model.Event) {
	if w.sink == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	w.sink.Record(e)
}

func cloneApplication(app *model.Application) *model.Application {
	out := *app
	return &out
}
