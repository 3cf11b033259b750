package authz

import (
	"testing"
	"time"

	"civica.org/internal/identity"
	"civica.org/internal/project"
)

func usableIdentity(id string, roles ...identity.Role) *identity.Identity {
	return &identity.Identity{
		ID:        id,
		Username:  id,
		Roles:     append([]identity.Role{identity.RoleUser}, roles...),
		Active:    true,
		Validated: true,
	}
}

func memberActor(id string, projectID string, role project.MemberRole) Actor {
	return NewActor(usableIdentity(id), []*project.Membership{
		{ProjectID: projectID, IdentityID: id, Role: role},
	})
}

func publicProject(id string) *project.Project {
	return &project.Project{ID: id, Name: id, State: project.StatePublic}
}

func TestAnonymousGetsPublicReadsOnly(t *testing.T) {
	var anon Actor
	pub := publicProject("p1")
	priv := &project.Project{ID: "p2", State: project.StatePrivate}

	if !CanPerform(anon, ActionRead, ProjectResource{Project: pub}) {
		t.Fatal("anonymous must read public projects")
	}
	if CanPerform(anon, ActionRead, ProjectResource{Project: priv}) {
		t.Fatal("anonymous must not read private projects")
	}
	for _, action := range []Action{ActionCreate, ActionEdit, ActionDelete} {
		if CanPerform(anon, action, ProjectResource{Project: pub}) {
			t.Fatalf("anonymous must not %s", action)
		}
	}
}

func TestDisabledAccountIsAnonymous(t *testing.T) {
	id := usableIdentity("alice", identity.RoleAdministrator)
	id.Validated = false
	actor := NewActor(id, []*project.Membership{
		{ProjectID: "p1", IdentityID: "alice", Role: project.RoleCoordinator},
	})

	if CanPerform(actor, ActionEdit, ProjectResource{Project: publicProject("p1")}) {
		t.Fatal("unvalidated account must lose its permissions")
	}
	if !CanPerform(actor, ActionRead, ProjectResource{Project: publicProject("p1")}) {
		t.Fatal("unvalidated account keeps public reads")
	}

	now := time.Now().UTC()
	id.Validated = true
	id.DeletedAt = &now
	if CanPerform(actor, ActionEdit, ProjectResource{Project: publicProject("p1")}) {
		t.Fatal("deleted account must lose its permissions")
	}
}

func TestPrivilegedCarveOuts(t *testing.T) {
	admin := NewActor(usableIdentity("root", identity.RoleAdministrator), nil)

	unlocked := publicProject("p1")
	if CanPerform(admin, ActionDelete, ProjectResource{Project: unlocked}) {
		t.Fatal("project deletion requires locking first, even for staff")
	}
	locked := publicProject("p1")
	locked.Locked = true
	if !CanPerform(admin, ActionDelete, ProjectResource{Project: locked}) {
		t.Fatal("staff deletes a locked project")
	}

	// The last-coordinator guard binds staff too.
	guarded := MembershipResource{
		Membership:   &project.Membership{ID: "m1", ProjectID: "p1", IdentityID: "alice", Role: project.RoleCoordinator},
		Project:      unlocked,
		Coordinators: 1,
		Writers:      2,
	}
	if CanPerform(admin, ActionDelete, guarded) {
		t.Fatal("staff must not remove the last coordinator while writers remain")
	}
	if CanPerform(admin, ActionEdit, guarded) {
		t.Fatal("staff must not demote the last coordinator while writers remain")
	}

	// Everything else is open to staff.
	if !CanPerform(admin, ActionEdit, ProjectResource{Project: unlocked}) {
		t.Fatal("staff edits projects")
	}
}

func TestContentRules(t *testing.T) {
	p := publicProject("p1")
	item := &project.ContentItem{ID: "c1", Kind: project.KindArgument, ProjectID: "p1", AuthorID: "bob"}

	writer := memberActor("bob", "p1", project.RoleWriter)
	observer := memberActor("eve", "p1", project.RoleObserver)
	outsider := NewActor(usableIdentity("mallory"), nil)

	if !CanPerform(writer, ActionEdit, ContentResource{Item: item, Project: p}) {
		t.Fatal("writer edits content")
	}
	if CanPerform(observer, ActionEdit, ContentResource{Item: item, Project: p}) {
		t.Fatal("observer must not edit content")
	}
	if CanPerform(outsider, ActionEdit, ContentResource{Item: item, Project: p}) {
		t.Fatal("outsider must not edit content")
	}
	if !CanPerform(outsider, ActionRead, ContentResource{Item: item, Project: p}) {
		t.Fatal("public project content is readable by anyone")
	}

	// A locked project freezes content for regular members.
	lockedProject := publicProject("p1")
	lockedProject.Locked = true
	if CanPerform(writer, ActionEdit, ContentResource{Item: item, Project: lockedProject}) {
		t.Fatal("locked project must freeze content")
	}
	if CanPerform(writer, ActionCreate, ContentResource{Item: item, Project: lockedProject}) {
		t.Fatal("locked project must reject new content")
	}
	if !CanPerform(writer, ActionRead, ContentResource{Item: item, Project: lockedProject}) {
		t.Fatal("locked project stays readable")
	}

	// Content without a resolved owning project may only be created.
	detached := &project.ContentItem{ID: "c2", Kind: project.KindArgument, AuthorID: "bob"}
	if !CanPerform(writer, ActionCreate, ContentResource{Item: detached}) {
		t.Fatal("detached content may be created")
	}
	if CanPerform(writer, ActionEdit, ContentResource{Item: detached}) {
		t.Fatal("detached content must not be editable")
	}
	if CanPerform(writer, ActionDelete, ContentResource{Item: detached}) {
		t.Fatal("detached content must not be deletable")
	}
}

func TestMembershipRules(t *testing.T) {
	p := publicProject("p1")
	target := &project.Membership{ID: "m1", ProjectID: "p1", IdentityID: "bob", Role: project.RoleWriter}
	res := MembershipResource{Membership: target, Project: p, Coordinators: 2, Writers: 1}

	coordinator := memberActor("alice", "p1", project.RoleCoordinator)
	self := memberActor("bob", "p1", project.RoleWriter)
	observer := memberActor("eve", "p1", project.RoleObserver)

	if !CanPerform(coordinator, ActionEdit, res) {
		t.Fatal("coordinator edits memberships")
	}
	if !CanPerform(self, ActionEdit, res) {
		t.Fatal("members edit their own membership")
	}
	if CanPerform(observer, ActionEdit, res) {
		t.Fatal("observers must not edit other memberships")
	}

	if !CanPerform(self, ActionDelete, res) {
		t.Fatal("self-removal is always allowed")
	}
	if !CanPerform(coordinator, ActionDelete, res) {
		t.Fatal("coordinator removes non-coordinators")
	}

	coordTarget := MembershipResource{
		Membership:   &project.Membership{ID: "m2", ProjectID: "p1", IdentityID: "carol", Role: project.RoleCoordinator},
		Project:      p,
		Coordinators: 2,
		Writers:      1,
	}
	if CanPerform(coordinator, ActionDelete, coordTarget) {
		t.Fatal("coordinators do not remove each other")
	}

	// Self-removal survives a locked project; self-edit does not.
	locked := publicProject("p1")
	locked.Locked = true
	lockedRes := MembershipResource{Membership: target, Project: locked, Coordinators: 2, Writers: 1}
	if !CanPerform(self, ActionDelete, lockedRes) {
		t.Fatal("leaving a locked project stays possible")
	}
	if CanPerform(self, ActionEdit, lockedRes) {
		t.Fatal("editing a membership on a locked project must fail")
	}
}

func TestRoleGrantsAreCoordinatorOnly(t *testing.T) {
	p := publicProject("p1")

	observerSelf := MembershipResource{
		Membership:   &project.Membership{ID: "m1", ProjectID: "p1", IdentityID: "eve", Role: project.RoleObserver},
		Project:      p,
		Coordinators: 1,
	}
	if CanPerform(memberActor("eve", "p1", project.RoleObserver), ActionGrant, observerSelf) {
		t.Fatal("observer must not grant itself a role")
	}

	applicantSelf := MembershipResource{
		Membership:   &project.Membership{ID: "m2", ProjectID: "p1", IdentityID: "mallory", Role: project.RoleApplicant},
		Project:      p,
		Coordinators: 1,
	}
	if CanPerform(memberActor("mallory", "p1", project.RoleApplicant), ActionGrant, applicantSelf) {
		t.Fatal("applicant must not approve its own application")
	}

	coordinator := memberActor("alice", "p1", project.RoleCoordinator)
	if !CanPerform(coordinator, ActionGrant, applicantSelf) {
		t.Fatal("coordinator grants roles")
	}

	// The guard still binds when the grant touches the last coordinator.
	guarded := MembershipResource{
		Membership:   &project.Membership{ID: "m3", ProjectID: "p1", IdentityID: "alice", Role: project.RoleCoordinator},
		Project:      p,
		Coordinators: 1,
		Writers:      1,
	}
	if CanPerform(coordinator, ActionGrant, guarded) {
		t.Fatal("granting past the last-coordinator guard must fail")
	}
	admin := NewActor(usableIdentity("root", identity.RoleAdministrator), nil)
	if CanPerform(admin, ActionGrant, guarded) {
		t.Fatal("the guard binds staff grants too")
	}
}

func TestAccountSelfServiceOnly(t *testing.T) {
	alice := usableIdentity("alice")
	actor := NewActor(alice, nil)
	other := NewActor(usableIdentity("bob"), nil)

	res := AccountResource{Account: alice}
	if !CanPerform(actor, ActionRead, res) || !CanPerform(actor, ActionEdit, res) {
		t.Fatal("self-service read and edit must pass")
	}
	if CanPerform(other, ActionRead, res) {
		t.Fatal("accounts are not readable by other users")
	}

	if !CanPerform(actor, ActionDelete, res) {
		t.Fatal("self deletion passes without anchored projects")
	}
	anchored := AccountResource{Account: alice, SoleCoordinatorWithWriters: true}
	if CanPerform(actor, ActionDelete, anchored) {
		t.Fatal("deletion is blocked while the account anchors a project with writers")
	}

	// Staff may administer accounts but the same deletion guard binds.
	admin := NewActor(usableIdentity("root", identity.RoleAdministrator), nil)
	if !CanPerform(admin, ActionEdit, res) {
		t.Fatal("staff administers accounts")
	}
	if CanPerform(admin, ActionDelete, anchored) {
		t.Fatal("staff deletion is blocked by the anchor guard too")
	}
}

func TestDenyByDefault(t *testing.T) {
	actor := NewActor(usableIdentity("alice"), nil)
	if CanPerform(actor, ActionRead, nil) {
		t.Fatal("nil resource must deny")
	}
	if CanPerform(actor, Action("examine"), ProjectResource{Project: publicProject("p1")}) {
		t.Fatal("unknown action must deny")
	}
	if CanPerform(actor, ActionRead, ProjectResource{}) {
		t.Fatal("nil project snapshot must deny")
	}
}
