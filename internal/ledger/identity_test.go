package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/forgecredit/forgecredit/internal/apperror"
	"github.com/forgecredit/forgecredit/internal/model"
)

func TestCreateProfile_Success(t *testing.T) {
	reg := newTestIdentity(t)

	p, err := reg.CreateProfile("alice", ProfileInput{
		Handle:    "alice-dev",
		Bio:       "likes compilers",
		TechStack: []string{"go", "rust"},
		Topics:    []string{"tooling"},
		Tier:      model.TierAdvanced,
		Role:      model.RoleContributor,
	})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	if p.Owner != "alice" || p.Handle != "alice-dev" {
		t.Errorf("profile = %q/%q, want alice/alice-dev", p.Owner, p.Handle)
	}
	if p.Reputation != 0 || p.CompletedIssues != 0 {
		t.Errorf("new profile has non-zero score: rep=%d completed=%d", p.Reputation, p.CompletedIssues)
	}

	byHandle, err := reg.GetProfileByHandle("alice-dev")
	if err != nil {
		t.Fatalf("GetProfileByHandle() error = %v", err)
	}
	if byHandle.Owner != "alice" {
		t.Errorf("handle resolves to %q, want alice", byHandle.Owner)
	}
}

func TestCreateProfile_DuplicateOwner(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)

	_, err := reg.CreateProfile("alice", ProfileInput{
		Handle:    "other-handle",
		TechStack: []string{"go"},
		Tier:      model.TierBeginner,
		Role:      model.RoleContributor,
	})
	if !errors.Is(err, apperror.ErrAlreadyExists) {
		t.Errorf("error = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateProfile_DuplicateHandle(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)

	_, err := reg.CreateProfile("bob", ProfileInput{
		Handle:    "alice",
		TechStack: []string{"go"},
		Tier:      model.TierBeginner,
		Role:      model.RoleContributor,
	})
	if !errors.Is(err, apperror.ErrAlreadyExists) {
		t.Errorf("error = %v, want ErrAlreadyExists", err)
	}
	// The failed attempt must not appear anywhere.
	if _, err := reg.GetProfile("bob"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProfile(bob) error = %v, want ErrNotFound", err)
	}
	if got := len(reg.Roster()); got != 1 {
		t.Errorf("roster size = %d, want 1", got)
	}
}

func TestCreateProfile_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   ProfileInput
	}{
		{"empty handle", ProfileInput{TechStack: []string{"go"}, Tier: model.TierBeginner, Role: model.RoleContributor}},
		{"whitespace handle", ProfileInput{Handle: "   ", TechStack: []string{"go"}, Tier: model.TierBeginner, Role: model.RoleContributor}},
		{"no tech stack", ProfileInput{Handle: "x", Tier: model.TierBeginner, Role: model.RoleContributor}},
		{"bad tier", ProfileInput{Handle: "x", TechStack: []string{"go"}, Tier: "guru", Role: model.RoleContributor}},
		{"bad role", ProfileInput{Handle: "x", TechStack: []string{"go"}, Tier: model.TierBeginner, Role: "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestIdentity(t)
			_, err := reg.CreateProfile("alice", tt.in)
			if !errors.Is(err, apperror.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestUpdateProfile_HandleImmutable(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)

	p, err := reg.UpdateProfile("alice", ProfileInput{
		Handle:    "renamed",
		Bio:       "new bio",
		TechStack: []string{"zig"},
		Tier:      model.TierAdvanced,
		Role:      model.RoleContributor,
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if p.Handle != "alice" {
		t.Errorf("handle changed to %q, want alice", p.Handle)
	}
	if p.Bio != "new bio" || p.Tier != model.TierAdvanced {
		t.Errorf("mutable fields not applied: bio=%q tier=%q", p.Bio, p.Tier)
	}
	// The old handle still resolves, no new binding appeared.
	if _, err := reg.GetProfileByHandle("renamed"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProfileByHandle(renamed) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateProfile_NotFound(t *testing.T) {
	reg := newTestIdentity(t)
	_, err := reg.UpdateProfile("ghost", ProfileInput{
		Handle: "g", TechStack: []string{"go"}, Tier: model.TierBeginner, Role: model.RoleContributor,
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateProfile_RoleCountersMove(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)

	before := reg.Stats()
	if before.Contributors != 1 || before.Maintainers != 0 {
		t.Fatalf("stats before = %+v", before)
	}

	_, err := reg.UpdateProfile("alice", ProfileInput{
		Handle: "alice", TechStack: []string{"go"}, Tier: model.TierIntermediate, Role: model.RoleBoth,
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	after := reg.Stats()
	if after.Contributors != 1 || after.Maintainers != 1 {
		t.Errorf("stats after role change = %+v, want 1 contributor and 1 maintainer", after)
	}
}

func TestStats_RoleBothCountsInBoth(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)
	seedProfile(t, reg, "bob", model.RoleMaintainer)
	seedProfile(t, reg, "carol", model.RoleBoth)

	s := reg.Stats()
	if s.TotalProfiles != 3 {
		t.Errorf("TotalProfiles = %d, want 3", s.TotalProfiles)
	}
	if s.Contributors != 2 {
		t.Errorf("Contributors = %d, want 2", s.Contributors)
	}
	if s.Maintainers != 2 {
		t.Errorf("Maintainers = %d, want 2", s.Maintainers)
	}
}

func TestRecordCompletion_RequiresCapability(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)

	err := reg.RecordCompletion("settlement", "alice", 5*MicroPerCredit)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	p, _ := reg.GetProfile("alice")
	if p.CompletedIssues != 0 || p.TotalEarned != 0 {
		t.Errorf("profile mutated despite error: %+v", p)
	}
}

func TestRecordCompletion_Formula(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)
	if err := reg.Grant(testAdmin, "settlement", CapReputationUpdater); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	// 100 credits earned on one completion: 10 points for the completion
	// plus 100_000_000 / 10_000 = 10_000 points for the earnings.
	if err := reg.RecordCompletion("settlement", "alice", 100*MicroPerCredit); err != nil {
		t.Fatalf("RecordCompletion() error = %v", err)
	}
	p, _ := reg.GetProfile("alice")
	if p.Reputation != 10_010 {
		t.Errorf("Reputation = %d, want 10010", p.Reputation)
	}
	if p.CompletedIssues != 1 || p.TotalEarned != 100*MicroPerCredit {
		t.Errorf("accumulators = completed %d earned %d", p.CompletedIssues, p.TotalEarned)
	}
}

func TestRecordCompletion_TruncatesEarnings(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)
	if err := reg.Grant(testAdmin, "settlement", CapReputationUpdater); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	// 15_000 micro-credits is 1.5 reputation units; the fraction truncates.
	if err := reg.RecordCompletion("settlement", "alice", 15_000); err != nil {
		t.Fatalf("RecordCompletion() error = %v", err)
	}
	p, _ := reg.GetProfile("alice")
	if p.Reputation != PointsPerIssue+1 {
		t.Errorf("Reputation = %d, want %d", p.Reputation, PointsPerIssue+1)
	}
}

func TestRecordCompletion_NegativeAmount(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)
	if err := reg.Grant(testAdmin, "settlement", CapReputationUpdater); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	err := reg.RecordCompletion("settlement", "alice", -1)
	if !errors.Is(err, apperror.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestAdminSetReputation_OverrideThenRecompute(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)
	if err := reg.Grant(testAdmin, "settlement", CapReputationUpdater); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	if err := reg.AdminSetReputation(testAdmin, "alice", 999); err != nil {
		t.Fatalf("AdminSetReputation() error = %v", err)
	}
	p, _ := reg.GetProfile("alice")
	if p.Reputation != 999 {
		t.Fatalf("Reputation = %d, want 999", p.Reputation)
	}

	// The next completion recomputes from the formula; the override does not
	// survive as a base.
	if err := reg.RecordCompletion("settlement", "alice", MicroPerCredit); err != nil {
		t.Fatalf("RecordCompletion() error = %v", err)
	}
	p, _ = reg.GetProfile("alice")
	want := reputationScore(1, MicroPerCredit)
	if p.Reputation != want {
		t.Errorf("Reputation = %d, want %d", p.Reputation, want)
	}
}

func TestAdminSetReputation_NotAdmin(t *testing.T) {
	reg := newTestIdentity(t)
	seedProfile(t, reg, "alice", model.RoleContributor)

	err := reg.AdminSetReputation("alice", "alice", 1)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestGrant_AdminOnly(t *testing.T) {
	reg := newTestIdentity(t)

	if err := reg.Grant("mallory", "mallory", CapReputationUpdater); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Grant by non-admin: error = %v, want ErrUnauthorized", err)
	}
	if err := reg.Grant(testAdmin, "settlement", CapReputationUpdater); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if !reg.HasCapability("settlement", CapReputationUpdater) {
		t.Error("capability not recorded after grant")
	}
	if err := reg.Revoke(testAdmin, "settlement", CapReputationUpdater); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if reg.HasCapability("settlement", CapReputationUpdater) {
		t.Error("capability survived revoke")
	}
}

func TestTopByReputation_OrderAndTies(t *testing.T) {
	reg := newTestIdentity(t)
	if err := reg.Grant(testAdmin, "settlement", CapReputationUpdater); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	for _, owner := range []string{"a", "b", "c", "d"} {
		seedProfile(t, reg, owner, model.RoleContributor)
	}
	// a and c tie at 10, d leads with 20, b stays at 0.
	mustRecord := func(owner string, amount int64) {
		t.Helper()
		if err := reg.RecordCompletion("settlement", owner, amount); err != nil {
			t.Fatalf("RecordCompletion(%s) error = %v", owner, err)
		}
	}
	mustRecord("a", 0)
	mustRecord("c", 0)
	mustRecord("d", 0)
	mustRecord("d", 0) // d: two completions = 20

	top := reg.TopByReputation(3)
	got := []string{top[0].Owner, top[1].Owner, top[2].Owner}
	want := []string{"d", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TopByReputation order = %v, want %v", got, want)
		}
	}

	if n := len(reg.TopByReputation(0)); n != 0 {
		t.Errorf("TopByReputation(0) returned %d entries, want 0", n)
	}
	if n := len(reg.TopByReputation(10)); n != 4 {
		t.Errorf("TopByReputation(10) returned %d entries, want 4", n)
	}
}

func TestRosterPage_MatchesRoster(t *testing.T) {
	reg := newTestIdentity(t)
	for i := 0; i < 5; i++ {
		seedProfile(t, reg, fmt.Sprintf("user-%d", i), model.RoleContributor)
	}

	full := reg.Roster()
	if len(full) != 5 {
		t.Fatalf("roster size = %d, want 5", len(full))
	}
	var paged []string
	for offset := 0; offset < 5; offset += 2 {
		paged = append(paged, reg.RosterPage(offset, 2)...)
	}
	if len(paged) != len(full) {
		t.Fatalf("paged size = %d, want %d", len(paged), len(full))
	}
	for i := range full {
		if paged[i] != full[i] {
			t.Errorf("paged[%d] = %q, want %q", i, paged[i], full[i])
		}
	}
	if got := reg.RosterPage(10, 2); len(got) != 0 {
		t.Errorf("offset past end returned %d entries, want 0", len(got))
	}
}

func TestFilters_ExactMatchInCreationOrder(t *testing.T) {
	reg := newTestIdentity(t)
	mustCreate := func(owner string, tech, topics []string, tier model.ExperienceTier) {
		t.Helper()
		if _, err := reg.CreateProfile(owner, ProfileInput{
			Handle: owner, TechStack: tech, Topics: topics, Tier: tier, Role: model.RoleContributor,
		}); err != nil {
			t.Fatalf("CreateProfile(%s) error = %v", owner, err)
		}
	}
	mustCreate("alice", []string{"go", "rust"}, []string{"infra"}, model.TierAdvanced)
	mustCreate("bob", []string{"golang"}, []string{"web"}, model.TierBeginner)
	mustCreate("carol", []string{"go"}, []string{"infra"}, model.TierAdvanced)

	// Tag matching is exact: "golang" does not match "go".
	byTech := reg.FilterByTech("go")
	if len(byTech) != 2 || byTech[0].Owner != "alice" || byTech[1].Owner != "carol" {
		t.Errorf("FilterByTech(go) = %v", owners(byTech))
	}
	byTopic := reg.FilterByTopic("infra")
	if len(byTopic) != 2 {
		t.Errorf("FilterByTopic(infra) size = %d, want 2", len(byTopic))
	}
	byTier := reg.FilterByTier(model.TierBeginner)
	if len(byTier) != 1 || byTier[0].Owner != "bob" {
		t.Errorf("FilterByTier(beginner) = %v", owners(byTier))
	}
}

func owners(profiles []model.Profile) []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = p.Owner
	}
	return out
}
