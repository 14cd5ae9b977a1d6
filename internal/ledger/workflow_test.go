package ledger

import (
	"errors"
	"testing"

	"github.com/forgecredit/forgecredit/internal/apperror"
	"github.com/forgecredit/forgecredit/internal/model"
)

const workflowID = "application-workflow"

// workflowFixture wires an identity registry, a project registry and the
// workflow with its issue-assigner grant, plus one maintainer, two
// contributors and one open issue.
type workflowFixture struct {
	identity *IdentityRegistry
	projects *ProjectRegistry
	workflow *ApplicationWorkflow
	repo     *model.Repo
	issue    *model.Issue
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	identity := newTestIdentity(t)
	projects := newTestProjects(t)
	workflow := NewApplicationWorkflow(identity, projects, WorkflowConfig{
		ComponentID:   workflowID,
		MinMatchScore: 40,
		MaxPerIssue:   50,
	}, nil, testLogger())

	if err := projects.Grant(testAdmin, workflowID, CapIssueAssigner); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	seedProfile(t, identity, "maintainer", model.RoleMaintainer)
	seedProfile(t, identity, "alice", model.RoleContributor)
	seedProfile(t, identity, "bob", model.RoleBoth)

	repo := seedRepo(t, projects, "maintainer", "gh/r")
	issue := seedIssue(t, projects, "maintainer", repo.ID, "gh/r#1", 0)

	return &workflowFixture{
		identity: identity,
		projects: projects,
		workflow: workflow,
		repo:     repo,
		issue:    issue,
	}
}

func (f *workflowFixture) apply(t *testing.T, contributor string, score int) *model.Application {
	t.Helper()
	app, err := f.workflow.Apply(contributor, f.issue.ID, "I can take this", score)
	if err != nil {
		t.Fatalf("Apply(%s) error = %v", contributor, err)
	}
	return app
}

func TestApply_Success(t *testing.T) {
	f := newWorkflowFixture(t)

	app := f.apply(t, "alice", 80)
	if app.ID != 1 || app.Status != model.ApplicationPending {
		t.Errorf("application = %+v", app)
	}
	if got := f.workflow.PendingByIssue(f.issue.ID); len(got) != 1 {
		t.Errorf("pending = %d, want 1", len(got))
	}
}

func TestApply_RequiresProfile(t *testing.T) {
	f := newWorkflowFixture(t)

	_, err := f.workflow.Apply("ghost", f.issue.ID, "hi", 80)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestApply_MaintainerOnlyProfileCannotApply(t *testing.T) {
	f := newWorkflowFixture(t)

	_, err := f.workflow.Apply("maintainer", f.issue.ID, "mine now", 80)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
	// A dual-role profile may apply.
	if _, err := f.workflow.Apply("bob", f.issue.ID, "hi", 80); err != nil {
		t.Errorf("Apply(bob) error = %v", err)
	}
}

func TestApply_Validation(t *testing.T) {
	f := newWorkflowFixture(t)

	tests := []struct {
		name    string
		message string
		score   int
		want    error
	}{
		{"empty message", "  ", 80, apperror.ErrInvalidInput},
		{"score above 100", "hi", 101, apperror.ErrInvalidInput},
		{"negative score", "hi", -1, apperror.ErrInvalidInput},
		{"score below minimum", "hi", 39, apperror.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.workflow.Apply("alice", f.issue.ID, tt.message, tt.score)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApply_IssueNotOpen(t *testing.T) {
	f := newWorkflowFixture(t)
	if err := f.projects.AssignIssue("maintainer", f.issue.ID, "bob"); err != nil {
		t.Fatalf("AssignIssue() error = %v", err)
	}

	_, err := f.workflow.Apply("alice", f.issue.ID, "hi", 80)
	if !errors.Is(err, apperror.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

func TestApply_UnknownIssue(t *testing.T) {
	f := newWorkflowFixture(t)
	_, err := f.workflow.Apply("alice", 999, "hi", 80)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestApply_DuplicateWhilePending(t *testing.T) {
	f := newWorkflowFixture(t)
	f.apply(t, "alice", 80)

	_, err := f.workflow.Apply("alice", f.issue.ID, "again", 90)
	if !errors.Is(err, apperror.ErrAlreadyExists) {
		t.Errorf("error = %v, want ErrAlreadyExists", err)
	}
}

func TestApply_ReapplyAfterRejection(t *testing.T) {
	f := newWorkflowFixture(t)
	app := f.apply(t, "alice", 80)

	if err := f.workflow.Reject("maintainer", app.ID, "not this time"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	second, err := f.workflow.Apply("alice", f.issue.ID, "round two", 85)
	if err != nil {
		t.Fatalf("reapply error = %v", err)
	}
	if second.ID == app.ID {
		t.Error("reapplication reused the old application ID")
	}

	apps := f.workflow.ApplicationsByContributor("alice")
	if len(apps) != 2 {
		t.Errorf("application history = %d entries, want 2", len(apps))
	}
}

func TestApply_PerIssueCap(t *testing.T) {
	identity := newTestIdentity(t)
	projects := newTestProjects(t)
	workflow := NewApplicationWorkflow(identity, projects, WorkflowConfig{
		ComponentID:   workflowID,
		MinMatchScore: 0,
		MaxPerIssue:   1,
	}, nil, testLogger())
	seedProfile(t, identity, "maintainer", model.RoleMaintainer)
	seedProfile(t, identity, "alice", model.RoleContributor)
	seedProfile(t, identity, "bob", model.RoleContributor)
	repo := seedRepo(t, projects, "maintainer", "gh/r")
	issue := seedIssue(t, projects, "maintainer", repo.ID, "gh/r#1", 0)

	if _, err := workflow.Apply("alice", issue.ID, "hi", 50); err != nil {
		t.Fatalf("Apply(alice) error = %v", err)
	}
	_, err := workflow.Apply("bob", issue.ID, "hi", 50)
	if !errors.Is(err, apperror.ErrLimitExceeded) {
		t.Errorf("error = %v, want ErrLimitExceeded", err)
	}
}

func TestAccept_AssignsAndSupersedesSiblings(t *testing.T) {
	f := newWorkflowFixture(t)
	winner := f.apply(t, "alice", 90)
	loser := f.apply(t, "bob", 70)

	if err := f.workflow.Accept("maintainer", winner.ID); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	issue, _ := f.projects.GetIssue(f.issue.ID)
	if issue.Status != model.IssueAssigned || issue.Assignee != "alice" {
		t.Errorf("issue after accept = %+v", issue)
	}

	gotWinner, _ := f.workflow.GetApplication(winner.ID)
	if gotWinner.Status != model.ApplicationAccepted || gotWinner.ReviewedAt.IsZero() {
		t.Errorf("winner = %+v", gotWinner)
	}
	gotLoser, _ := f.workflow.GetApplication(loser.ID)
	if gotLoser.Status != model.ApplicationRejected {
		t.Fatalf("sibling status = %q, want rejected", gotLoser.Status)
	}
	if gotLoser.RejectionReason != ReasonSuperseded {
		t.Errorf("sibling reason = %q, want %q", gotLoser.RejectionReason, ReasonSuperseded)
	}

	// The superseded contributor is free to apply to another issue.
	other := seedIssue(t, f.projects, "maintainer", f.repo.ID, "gh/r#2", 0)
	if _, err := f.workflow.Apply("bob", other.ID, "next one", 70); err != nil {
		t.Errorf("superseded contributor blocked from reapplying: %v", err)
	}
}

func TestAccept_OnlyMaintainer(t *testing.T) {
	f := newWorkflowFixture(t)
	app := f.apply(t, "alice", 90)

	if err := f.workflow.Accept("bob", app.ID); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	got, _ := f.workflow.GetApplication(app.ID)
	if got.Status != model.ApplicationPending {
		t.Errorf("application mutated by failed accept: %+v", got)
	}
}

func TestAccept_NotPending(t *testing.T) {
	f := newWorkflowFixture(t)
	app := f.apply(t, "alice", 90)
	if err := f.workflow.Accept("maintainer", app.ID); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	if err := f.workflow.Accept("maintainer", app.ID); !errors.Is(err, apperror.ErrInvalidState) {
		t.Errorf("second accept: error = %v, want ErrInvalidState", err)
	}
}

func TestAccept_AssignFailureLeavesApplicationPending(t *testing.T) {
	f := newWorkflowFixture(t)
	app := f.apply(t, "alice", 90)

	// Sidestep the workflow: the issue leaves Open before the acceptance.
	if err := f.projects.AssignIssue("maintainer", f.issue.ID, "bob"); err != nil {
		t.Fatalf("AssignIssue() error = %v", err)
	}

	err := f.workflow.Accept("maintainer", app.ID)
	if !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("error = %v, want ErrInvalidState", err)
	}
	got, _ := f.workflow.GetApplication(app.ID)
	if got.Status != model.ApplicationPending {
		t.Errorf("application status = %q after failed accept, want pending", got.Status)
	}
}

func TestReject_OnlyMaintainer(t *testing.T) {
	f := newWorkflowFixture(t)
	app := f.apply(t, "alice", 90)

	if err := f.workflow.Reject("bob", app.ID, "no"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
	if err := f.workflow.Reject("maintainer", app.ID, "no"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	got, _ := f.workflow.GetApplication(app.ID)
	if got.Status != model.ApplicationRejected || got.RejectionReason != "no" {
		t.Errorf("application = %+v", got)
	}
}

func TestWithdraw_ByApplicantOnly(t *testing.T) {
	f := newWorkflowFixture(t)
	app := f.apply(t, "alice", 90)

	if err := f.workflow.Withdraw("bob", app.ID); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
	if err := f.workflow.Withdraw("alice", app.ID); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	got, _ := f.workflow.GetApplication(app.ID)
	if got.Status != model.ApplicationRejected || got.RejectionReason != ReasonWithdrawn {
		t.Errorf("application = %+v", got)
	}

	// Withdrawal frees the slot for a fresh application.
	if _, err := f.workflow.Apply("alice", f.issue.ID, "changed my mind back", 90); err != nil {
		t.Errorf("reapply after withdraw: error = %v", err)
	}
}

func TestBatchReview_StopsAtFirstFailure(t *testing.T) {
	f := newWorkflowFixture(t)
	first := f.apply(t, "alice", 90)
	second := f.apply(t, "bob", 70)

	// Withdraw the second application so its rejection fails mid-batch.
	if err := f.workflow.Withdraw("bob", second.ID); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}

	err := f.workflow.BatchReview("maintainer", []uint64{first.ID, second.ID}, false, "cleanup")
	if !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("error = %v, want ErrInvalidState", err)
	}

	// The first rejection already applied and stands.
	got, _ := f.workflow.GetApplication(first.ID)
	if got.Status != model.ApplicationRejected || got.RejectionReason != "cleanup" {
		t.Errorf("first application = %+v, want rejected with reason cleanup", got)
	}
}

func TestBatchReview_Empty(t *testing.T) {
	f := newWorkflowFixture(t)
	err := f.workflow.BatchReview("maintainer", nil, true, "")
	if !errors.Is(err, apperror.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestPendingForMaintainer_JoinsAcrossRepos(t *testing.T) {
	f := newWorkflowFixture(t)
	otherRepo := seedRepo(t, f.projects, "maintainer", "gh/r2")
	otherIssue := seedIssue(t, f.projects, "maintainer", otherRepo.ID, "gh/r2#1", 0)
	foreignRepo := seedRepo(t, f.projects, "someone-else", "gh/x")
	foreignIssue := seedIssue(t, f.projects, "someone-else", foreignRepo.ID, "gh/x#1", 0)

	f.apply(t, "alice", 90)
	if _, err := f.workflow.Apply("bob", otherIssue.ID, "hi", 70); err != nil {
		t.Fatalf("Apply(bob) error = %v", err)
	}
	if _, err := f.workflow.Apply("alice", foreignIssue.ID, "hi", 70); err != nil {
		t.Fatalf("Apply to foreign issue error = %v", err)
	}

	pending := f.workflow.PendingForMaintainer("maintainer")
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	for _, app := range pending {
		if app.IssueID == foreignIssue.ID {
			t.Errorf("foreign issue application leaked into review queue")
		}
	}
}

func TestTopApplicants_RanksByScoreStably(t *testing.T) {
	f := newWorkflowFixture(t)
	seedProfile(t, f.identity, "carol", model.RoleContributor)
	seedProfile(t, f.identity, "dave", model.RoleContributor)

	f.apply(t, "alice", 70)
	f.apply(t, "bob", 90)
	f.apply(t, "carol", 70)
	f.apply(t, "dave", 80)

	top := f.workflow.TopApplicants(f.issue.ID, 3)
	if len(top) != 3 {
		t.Fatalf("top = %d entries, want 3", len(top))
	}
	got := []string{top[0].Contributor, top[1].Contributor, top[2].Contributor}
	want := []string{"bob", "dave", "alice"} // alice beats carol on submission order
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TopApplicants order = %v, want %v", got, want)
		}
	}
}
