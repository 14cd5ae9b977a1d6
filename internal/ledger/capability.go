// Package ledger implements the four interlocking stores of the platform:
// the identity registry, the project registry, the application workflow and
// the settlement ledger. Stores are constructed and wired explicitly in
// dependency order; there are no package-level registries.
//
// Execution model: every public operation is a critical section guarded by
// the owning store's mutex and runs to completion as one atomic unit. All
// validation happens before the first mutation, so a non-nil error always
// means zero state change. Cross-store mutation is only possible through a
// granted capability, never by direct state access.
package ledger

import (
	"github.com/forgecredit/forgecredit/internal/apperror"
)

// Capability names a narrow privileged operation one component may invoke
// on another.
type Capability string

const (
	// CapReputationUpdater authorizes IdentityRegistry.RecordCompletion.
	CapReputationUpdater Capability = "reputation-updater"
	// CapIssueAssigner authorizes ProjectRegistry.AssignIssue on issues the
	// caller does not maintain.
	CapIssueAssigner Capability = "issue-assigner"
)

// accessControl is the per-store capability table. The admin identity is
// fixed at construction and is the only identity allowed to grant or revoke.
// Callers must hold the owning store's mutex.
type accessControl struct {
	admin  string
	grants map[string]map[Capability]bool
}

func newAccessControl(admin string) accessControl {
	return accessControl{
		admin:  admin,
		grants: make(map[string]map[Capability]bool),
	}
}

func (a *accessControl) isAdmin(caller string) bool {
	return caller != "" && caller == a.admin
}

func (a *accessControl) has(grantee string, cap Capability) bool {
	return a.grants[grantee][cap]
}

func (a *accessControl) grant(caller, grantee string, cap Capability) error {
	if !a.isAdmin(caller) {
		return apperror.Unauthorized("only the admin may grant capabilities")
	}
	if grantee == "" {
		return apperror.InvalidInput("grantee", "grantee is required")
	}
	if a.grants[grantee] == nil {
		a.grants[grantee] = make(map[Capability]bool)
	}
	a.grants[grantee][cap] = true
	return nil
}

func (a *accessControl) revoke(caller, grantee string, cap Capability) error {
	if !a.isAdmin(caller) {
		return apperror.Unauthorized("only the admin may revoke capabilities")
	}
	delete(a.grants[grantee], cap)
	return nil
}
