package authz

import "civica.org/internal/project"

// CanPerform decides whether the actor may perform the action on the
// resource. It is a total function over plain data: absence of a matching
// rule means deny, and no rule consults storage or panics.
//
// Rule precedence, first match wins:
//
//  1. anonymous (or disabled) actors get public reads only
//  2. administrators and process-managers get everything, except that
//     project deletion requires the project to be locked first and the
//     last-coordinator guard binds even them
//  3. content without a resolved owning project may only be created
//  4. a locked or deleted project freezes content for regular members
//  5. content mutation needs a write-capable role in the owning project
//  6. membership edits: self-edit of application and task fields, or a
//     coordinator editing someone else; role grants are coordinator-only
//     and never reachable through self-edit
//  7. membership deletion: self-removal always, coordinator removal of
//     non-coordinators on active projects
//  8. account access: self-service for usable accounts, deletion blocked
//     while the account anchors a project that still has writers
func CanPerform(actor Actor, action Action, res Resource) bool {
	if res == nil {
		return false
	}
	if actor.Anonymous() {
		return publicRead(action, res)
	}
	if actor.Privileged() {
		return privilegedAllowed(action, res)
	}
	switch r := res.(type) {
	case ProjectResource:
		return projectAllowed(actor, action, r)
	case ContentResource:
		return contentAllowed(actor, action, r)
	case MembershipResource:
		return membershipAllowed(actor, action, r)
	case AccountResource:
		return accountAllowed(actor, action, r)
	}
	return false
}

// publicRead is the only grant available to anonymous actors.
func publicRead(action Action, res Resource) bool {
	if action != ActionRead {
		return false
	}
	switch r := res.(type) {
	case ProjectResource:
		return visibleToEveryone(r.Project)
	case ContentResource:
		return r.Item != nil && r.Item.DeletedAt == nil && visibleToEveryone(r.Project)
	}
	return false
}

func visibleToEveryone(p *project.Project) bool {
	return p != nil && p.State == project.StatePublic && !p.Deleted()
}

// privilegedAllowed grants staff everything except the two carve-outs:
// deleting a project that has not been locked yet, and breaking the
// last-coordinator guard.
func privilegedAllowed(action Action, res Resource) bool {
	switch r := res.(type) {
	case ProjectResource:
		if action == ActionDelete {
			return r.Project != nil && r.Project.Locked
		}
		return true
	case MembershipResource:
		if (action == ActionEdit || action == ActionGrant || action == ActionDelete) && r.lastCoordinatorBlocked() {
			return false
		}
		return true
	case AccountResource:
		if action == ActionDelete && r.SoleCoordinatorWithWriters {
			return false
		}
		return true
	}
	return true
}

func projectAllowed(actor Actor, action Action, r ProjectResource) bool {
	p := r.Project
	switch action {
	case ActionCreate:
		// Any usable account may start a project; it becomes its first
		// coordinator at the persistence layer.
		return true
	case ActionRead:
		if visibleToEveryone(p) {
			return true
		}
		if p == nil || p.Deleted() {
			return false
		}
		_, member := actor.RoleIn(p.ID)
		return member
	case ActionEdit:
		if p == nil || p.Deleted() || p.Locked {
			return false
		}
		role, ok := actor.RoleIn(p.ID)
		return ok && role == project.RoleCoordinator
	case ActionDelete:
		// Project deletion is a staff operation.
		return false
	}
	return false
}

func contentAllowed(actor Actor, action Action, r ContentResource) bool {
	if r.Item == nil {
		return false
	}
	if !r.Item.Attached() || r.Project == nil {
		// Parent linkage not resolved yet: creation is validated elsewhere,
		// everything else on a detached item is a logic error.
		return action == ActionCreate
	}
	if action == ActionRead {
		if r.Item.DeletedAt == nil && visibleToEveryone(r.Project) {
			return true
		}
		if r.Project.Deleted() || r.Item.DeletedAt != nil {
			return false
		}
		_, member := actor.RoleIn(r.Project.ID)
		return member
	}
	// Mutation: frozen projects reject everything from regular members.
	if !r.Project.AcceptsContent() {
		return false
	}
	return actor.CanWriteIn(r.Project.ID)
}

func membershipAllowed(actor Actor, action Action, r MembershipResource) bool {
	m := r.Membership
	if m == nil || r.Project == nil {
		return false
	}
	self := actor.Is(m.IdentityID)
	role, isMember := actor.RoleIn(r.Project.ID)
	coordinator := isMember && role == project.RoleCoordinator

	switch action {
	case ActionCreate:
		// Self-application on a live project, or a coordinator inviting.
		if r.Project.Deleted() {
			return false
		}
		return self || coordinator
	case ActionRead:
		if r.Project.Deleted() {
			return false
		}
		return self || isMember || visibleToEveryone(r.Project)
	case ActionEdit:
		if r.Project.Deleted() {
			return false
		}
		if self {
			// A locked project allows members to leave, not to edit.
			return !r.Project.Locked
		}
		// Coordinators edit other members' application and task fields,
		// never their own membership through this branch.
		if !coordinator {
			return false
		}
		if r.lastCoordinatorBlocked() {
			return false
		}
		return true
	case ActionGrant:
		// Role changes are grants. Self-edit never reaches here, so an
		// applicant cannot approve its own application and an observer
		// cannot promote itself.
		if r.Project.Deleted() {
			return false
		}
		if !coordinator {
			return false
		}
		if r.lastCoordinatorBlocked() {
			return false
		}
		return true
	case ActionDelete:
		if r.lastCoordinatorBlocked() {
			return false
		}
		if self {
			// Leaving stays possible even on locked or deleted projects.
			return true
		}
		if r.Project.Deleted() || r.Project.Locked {
			return false
		}
		return coordinator && m.Role != project.RoleCoordinator
	}
	return false
}

func accountAllowed(actor Actor, action Action, r AccountResource) bool {
	if r.Account == nil {
		return false
	}
	if !actor.Is(r.Account.ID) {
		return false
	}
	// Reaching this point the actor is usable (anonymous and disabled
	// accounts were rejected up front), so self-service is open.
	switch action {
	case ActionRead, ActionEdit:
		return true
	case ActionDelete:
		return !r.SoleCoordinatorWithWriters
	}
	return false
}
