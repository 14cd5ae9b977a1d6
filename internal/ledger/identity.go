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

// ProfileInput carries the caller-editable profile fields.
type ProfileInput struct {
	Handle    string
	Bio       string
	TechStack []string
	Topics    []string
	Tier      model.ExperienceTier
	Role      model.Role
}

// IdentityStats are platform-wide aggregates over the roster.
type IdentityStats struct {
	TotalProfiles   int   `json:"totalProfiles"`
	Contributors    int   `json:"contributors"`
	Maintainers     int   `json:"maintainers"`
	CompletedIssues int64 `json:"completedIssues"`
	TotalEarned     int64 `json:"totalEarned"`
	TotalReputation int64 `json:"totalReputation"`
}

// IdentityRegistry owns contributor and maintainer profiles, the unique
// handle binding and the reputation accumulator. RecordCompletion is the
// only privileged mutation; it requires the reputation-updater capability.
type IdentityRegistry struct {
	mu     sync.Mutex
	acl    accessControl
	logger *slog.Logger
	sink   event.Sink

	profiles map[string]*model.Profile
	handles  map[string]string // handle -> owner
	roster   []string          // owners in creation order

	// role counters, maintained incrementally; RoleBoth counts in both
	contributorCount int
	maintainerCount  int
}

// NewIdentityRegistry creates an empty registry administered by admin.
// sink may be nil.
func NewIdentityRegistry(admin string, sink event.Sink, logger *slog.Logger) *IdentityRegistry {
	return &IdentityRegistry{
		acl:      newAccessControl(admin),
		logger:   logger,
		sink:     sink,
		profiles: make(map[string]*model.Profile),
		handles:  make(map[string]string),
	}
}

// Grant gives grantee a capability on this registry. Admin only.
func (r *IdentityRegistry) Grant(caller, grantee string, cap Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acl.grant(caller, grantee, cap)
}

// Revoke removes a capability. Admin only.
func (r *IdentityRegistry) Revoke(caller, grantee string, cap Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acl.revoke(caller, grantee, cap)
}

// HasCapability reports whether grantee currently holds cap.
func (r *IdentityRegistry) HasCapability(grantee string, cap Capability) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acl.has(grantee, cap)
}

// CreateProfile registers the caller's profile and binds its handle.
// One profile per identity; handles are globally unique and immutable.
func (r *IdentityRegistry) CreateProfile(caller string, in ProfileInput) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller == "" {
		return nil, apperror.InvalidInput("caller", "caller identity is required")
	}
	if _, ok := r.profiles[caller]; ok {
		return nil, apperror.AlreadyExists("profile", caller)
	}
	handle := strings.TrimSpace(in.Handle)
	if handle == "" {
		return nil, apperror.InvalidInput("handle", "handle is required")
	}
	if len(in.TechStack) == 0 {
		return nil, apperror.InvalidInput("techStack", "tech stack is required")
	}
	if owner, taken := r.handles[handle]; taken && owner != caller {
		return nil, apperror.AlreadyExists("handle", handle)
	}
	if err := validateTier(in.Tier); err != nil {
		return nil, err
	}
	if err := validateRole(in.Role); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &model.Profile{
		Owner:     caller,
		Handle:    handle,
		Bio:       in.Bio,
		TechStack: cloneStrings(in.TechStack),
		Topics:    cloneStrings(in.Topics),
		Tier:      in.Tier,
		Role:      in.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.profiles[caller] = p
	r.handles[handle] = caller
	r.roster = append(r.roster, caller)
	r.bumpRoleCounters(in.Role, +1)

	r.logger.Info("profile created",
		slog.String("owner", caller),
		slog.String("handle", handle),
	)
	r.emit(model.Event{Type: model.EventProfileCreated, Actor: caller, Subject: caller, At: now})
	return cloneProfile(p), nil
}

// UpdateProfile replaces the mutable fields of the caller's profile.
// The handle cannot change.
func (r *IdentityRegistry) UpdateProfile(caller string, in ProfileInput) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[caller]
	if !ok {
		return nil, apperror.NotFound("profile", caller)
	}
	if len(in.TechStack) == 0 {
		return nil, apperror.InvalidInput("techStack", "tech stack is required")
	}
	if err := validateTier(in.Tier); err != nil {
		return nil, err
	}
	if err := validateRole(in.Role); err != nil {
		return nil, err
	}

	if in.Role != p.Role {
		r.bumpRoleCounters(p.Role, -1)
		r.bumpRoleCounters(in.Role, +1)
	}
	p.Bio = in.Bio
	p.TechStack = cloneStrings(in.TechStack)
	p.Topics = cloneStrings(in.Topics)
	p.Tier = in.Tier
	p.Role = in.Role
	p.UpdatedAt = time.Now()

	r.emit(model.Event{Type: model.EventProfileUpdated, Actor: caller, Subject: caller, At: p.UpdatedAt})
	return cloneProfile(p), nil
}

// RecordCompletion credits one completed issue and its net earnings to
// owner, then recomputes the reputation score from the formula. The caller
// must hold the reputation-updater capability.
func (r *IdentityRegistry) RecordCompletion(caller, owner string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.acl.has(caller, CapReputationUpdater) {
		return apperror.Unauthorized("caller lacks the reputation-updater capability")
	}
	p, ok := r.profiles[owner]
	if !ok {
		return apperror.NotFound("profile", owner)
	}
	if amount < 0 {
		return apperror.InvalidInput("amount", "amount must not be negative")
	}

	p.CompletedIssues++
	p.TotalEarned += amount
	p.Reputation = reputationScore(p.CompletedIssues, p.TotalEarned)
	p.UpdatedAt = time.Now()

	r.emit(model.Event{
		Type:    model.EventReputationUpdated,
		Actor:   caller,
		Subject: owner,
		Amount:  amount,
		At:      p.UpdatedAt,
	})
	return nil
}

// AdminSetReputation overrides the derived score. It is a one-time manual
// correction: the next RecordCompletion recomputes the score from the
// formula and discards the override.
func (r *IdentityRegistry) AdminSetReputation(caller, owner string, score int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.acl.isAdmin(caller) {
		return apperror.Unauthorized("only the admin may set reputation")
	}
	p, ok := r.profiles[owner]
	if !ok {
		return apperror.NotFound("profile", owner)
	}
	if score < 0 {
		return apperror.InvalidInput("score", "score must not be negative")
	}
	p.Reputation = score
	p.UpdatedAt = time.Now()
	r.emit(model.Event{Type: model.EventReputationUpdated, Actor: caller, Subject: owner, At: p.UpdatedAt})
	return nil
}

// GetProfile returns the profile owned by owner.
func (r *IdentityRegistry) GetProfile(owner string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[owner]
	if !ok {
		return nil, apperror.NotFound("profile", owner)
	}
	return cloneProfile(p), nil
}

// GetProfileByHandle resolves a handle to its profile.
func (r *IdentityRegistry) GetProfileByHandle(handle string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.handles[handle]
	if !ok {
		return nil, apperror.NotFound("handle", handle)
	}
	return cloneProfile(r.profiles[owner]), nil
}

// Roster returns all profile owners in creation order.
func (r *IdentityRegistry) Roster() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return pageSlice(r.roster, 0, 0)
}

// RosterPage returns a window of the roster in creation order.
func (r *IdentityRegistry) RosterPage(offset, limit int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return pageSlice(r.roster, offset, limit)
}

// FilterByTech returns profiles whose tech stack contains tag exactly,
// in creation order.
func (r *IdentityRegistry) FilterByTech(tag string) []model.Profile {
	return r.filter(func(p *model.Profile) bool { return containsString(p.TechStack, tag) })
}

// FilterByTopic returns profiles interested in topic, in creation order.
func (r *IdentityRegistry) FilterByTopic(topic string) []model.Profile {
	return r.filter(func(p *model.Profile) bool { return containsString(p.Topics, topic) })
}

// FilterByTier returns profiles of the given experience tier, in creation order.
func (r *IdentityRegistry) FilterByTier(tier model.ExperienceTier) []model.Profile {
	return r.filter(func(p *model.Profile) bool { return p.Tier == tier })
}

func (r *IdentityRegistry) filter(keep func(*model.Profile) bool) []model.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Profile{}
	for _, owner := range r.roster {
		if p := r.profiles[owner]; keep(p) {
			out = append(out, *cloneProfile(p))
		}
	}
	return out
}

// TopByReputation returns up to n profiles ordered by score, descending.
// Selection is stable: on equal scores the earlier-registered profile ranks
// higher. A candidate only displaces entries whose score it strictly exceeds.
func (r *IdentityRegistry) TopByReputation(n int) []model.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 {
		return []model.Profile{}
	}
	top := make([]*model.Profile, 0, n)
	for _, owner := range r.roster {
		p := r.profiles[owner]
		pos := -1
		for i, cur := range top {
			if p.Reputation > cur.Reputation {
				pos = i
				break
			}
		}
		if pos == -1 {
			if len(top) < n {
				top = append(top, p)
			}
			continue
		}
		if len(top) < n {
			top = append(top, nil)
		}
		copy(top[pos+1:], top[pos:])
		top[pos] = p
	}

	out := make([]model.Profile, len(top))
	for i, p := range top {
		out[i] = *cloneProfile(p)
	}
	return out
}

// Stats sums platform aggregates over the roster.
func (r *IdentityRegistry) Stats() IdentityStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := IdentityStats{
		TotalProfiles: len(r.roster),
		Contributors:  r.contributorCount,
		Maintainers:   r.maintainerCount,
	}
	for _, owner := range r.roster {
		p := r.profiles[owner]
		s.CompletedIssues += p.CompletedIssues
		s.TotalEarned += p.TotalEarned
		s.TotalReputation += p.Reputation
	}
	return s
}

func (r *IdentityRegistry) bumpRoleCounters(role model.Role, delta int) {
	switch role {
	case model.RoleContributor:
		r.contributorCount += delta
	case model.RoleMaintainer:
		r.maintainerCount += delta
	case model.RoleBoth:
		r.contributorCount += delta
		r.maintainerCount += delta
	}
}

func (r *IdentityRegistry) emit(e model.Event) {
	if r.sink == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	r.sink.Record(e)
}

func validateTier(tier model.ExperienceTier) error {
	switch tier {
	case model.TierBeginner, model.TierIntermediate, model.TierAdvanced:
		return nil
	}
	return apperror.InvalidInput("tier", "unknown experience tier")
}

func validateRole(role model.Role) error {
	switch role {
	case model.RoleContributor, model.RoleMaintainer, model.RoleBoth:
		return nil
	}
	return apperror.InvalidInput("role", "unknown role")
}

func cloneProfile(p *model.Profile) *model.Profile {
	out := *p
	out.TechStack = cloneStrings(p.TechStack)
	out.Topics = cloneStrings(p.Topics)
	return &out
}
