package authz

import (
	"civica.org/internal/identity"
	"civica.org/internal/project"
)

// Actor is the acting principal with its project roles resolved up front.
// A zero Actor is anonymous. Decisions never reach back into storage, so
// everything the evaluator needs must be loaded here.
type Actor struct {
	Identity *identity.Identity
	// Roles maps project ID to the actor's membership role there.
	Roles map[string]project.MemberRole
}

// NewActor builds an Actor from an identity and its memberships.
func NewActor(id *identity.Identity, memberships []*project.Membership) Actor {
	a := Actor{Identity: id}
	if len(memberships) > 0 {
		a.Roles = make(map[string]project.MemberRole, len(memberships))
		for _, m := range memberships {
			a.Roles[m.ProjectID] = m.Role
		}
	}
	return a
}

// Anonymous reports whether the actor carries no usable identity. Deleted
// and unvalidated accounts are treated as anonymous: they lose their
// permissions regardless of roles.
func (a Actor) Anonymous() bool {
	return !a.Identity.Usable()
}

// Privileged reports whether the actor is an administrator or
// process-manager with a usable account.
func (a Actor) Privileged() bool {
	return a.Identity.Privileged()
}

// RoleIn returns the actor's role in the given project.
func (a Actor) RoleIn(projectID string) (project.MemberRole, bool) {
	role, ok := a.Roles[projectID]
	return role, ok
}

// CanWriteIn reports whether the actor holds a write-capable role
// (coordinator or writer) in the given project.
func (a Actor) CanWriteIn(projectID string) bool {
	role, ok := a.Roles[projectID]
	return ok && role.CanWrite()
}

// Is reports whether the actor is the identity with the given ID.
func (a Actor) Is(identityID string) bool {
	return a.Identity != nil && identityID != "" && a.Identity.ID == identityID
}
