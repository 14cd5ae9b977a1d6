package ledger

import (
	"log/slog"
	"os"
	"testing"

	"github.com/forgecredit/forgecredit/internal/model"
)

const testAdmin = "admin"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestIdentity(t *testing.T) *IdentityRegistry {
	t.Helper()
	return NewIdentityRegistry(testAdmin, nil, testLogger())
}

func newTestProjects(t *testing.T) *ProjectRegistry {
	t.Helper()
	return NewProjectRegistry(testAdmin, nil, testLogger())
}

// seedProfile registers a minimal profile for owner. The handle defaults to
// the owner name.
func seedProfile(t *testing.T, reg *IdentityRegistry, owner string, role model.Role) {
	t.Helper()
	_, err := reg.CreateProfile(owner, ProfileInput{
		Handle:    owner,
		TechStack: []string{"go"},
		Tier:      model.TierIntermediate,
		Role:      role,
	})
	if err != nil {
		t.Fatalf("CreateProfile(%s) error = %v", owner, err)
	}
}

// seedRepo registers a repo maintained by maintainer and returns it.
func seedRepo(t *testing.T, reg *ProjectRegistry, maintainer, externalID string) *model.Repo {
	t.Helper()
	repo, err := reg.AddRepo(maintainer, RepoInput{
		ExternalID: externalID,
		Name:       externalID,
		TechStack:  []string{"go"},
	})
	if err != nil {
		t.Fatalf("AddRepo(%s) error = %v", externalID, err)
	}
	return repo
}

// seedIssue creates an open issue on repoID and returns it.
func seedIssue(t *testing.T, reg *ProjectRegistry, maintainer string, repoID uint64, externalID string, bounty int64) *model.Issue {
	t.Helper()
	issue, err := reg.AddIssue(maintainer, IssueInput{
		RepoID:     repoID,
		ExternalID: externalID,
		Title:      "issue " + externalID,
		Difficulty: model.DifficultyMedium,
		Bounty:     bounty,
	})
	if err != nil {
		t.Fatalf("AddIssue(%s) error = %v", externalID, err)
	}
	return issue
}
