package authz

import (
	"civica.org/internal/identity"
	"civica.org/internal/project"
)

// Resource is a snapshot of the thing an action targets. Snapshots carry
// every piece of state a decision needs so that CanPerform stays a pure
// function over plain data.
type Resource interface {
	// ResourceKind names the resource family for metrics and logging.
	ResourceKind() string
}

// ProjectResource targets a project itself.
type ProjectResource struct {
	Project *project.Project
}

func (ProjectResource) ResourceKind() string { return "project" }

// MembershipResource targets a single membership. Coordinators and Writers
// are the project's current role counts, loaded in the same transaction as
// the membership, so the last-coordinator guard can be evaluated without
// storage access.
type MembershipResource struct {
	Membership   *project.Membership
	Project      *project.Project
	Coordinators int
	Writers      int
}

func (MembershipResource) ResourceKind() string { return "membership" }

// lastCoordinatorBlocked mirrors the role model's guard: the membership is
// the sole coordinator of a project that still has writers.
func (r MembershipResource) lastCoordinatorBlocked() bool {
	return r.Membership != nil &&
		r.Membership.Role == project.RoleCoordinator &&
		r.Coordinators == 1 &&
		r.Writers > 0
}

// ContentResource targets a debate item. Project is the owning project, or
// nil while the item's parent linkage has not been resolved yet.
type ContentResource struct {
	Item    *project.ContentItem
	Project *project.Project
}

func (ContentResource) ResourceKind() string { return "content" }

// AccountResource targets a user account. SoleCoordinatorWithWriters is
// precomputed across all the account's memberships; deletion is blocked
// while it holds.
type AccountResource struct {
	Account                    *identity.Identity
	SoleCoordinatorWithWriters bool
}

func (AccountResource) ResourceKind() string { return "account" }
