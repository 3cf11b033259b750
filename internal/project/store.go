package project

import "context"

// Store describes persistence operations for projects.
type Store interface {
	Create(ctx context.Context, p *Project) error
	Find(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, p *Project) error
	// SoftDelete marks the project deleted; memberships cascade with the
	// project at purge time, not here.
	SoftDelete(ctx context.Context, id string) error
}

// MembershipStore describes persistence operations for memberships.
//
// ChangeRoleGuarded and DeleteGuarded re-evaluate the last-coordinator
// guard inside the mutation transaction, against rows locked for update,
// so a concurrent demotion cannot slip past the service-level check.
type MembershipStore interface {
	Create(ctx context.Context, m *Membership) error
	Find(ctx context.Context, id string) (*Membership, error)
	FindByProjectAndIdentity(ctx context.Context, projectID, identityID string) (*Membership, error)
	ListByProject(ctx context.Context, projectID string) ([]*Membership, error)
	ListByIdentity(ctx context.Context, identityID string) ([]*Membership, error)
	CountByRole(ctx context.Context, projectID string, role MemberRole) (int, error)
	Update(ctx context.Context, m *Membership) error
	ChangeRoleGuarded(ctx context.Context, membershipID string, newRole MemberRole) error
	DeleteGuarded(ctx context.Context, membershipID string) error
	// SoleCoordinatorWithWriters reports whether the identity is the only
	// coordinator of any project that still has writers. Account deletion
	// is blocked while this holds.
	SoleCoordinatorWithWriters(ctx context.Context, identityID string) (bool, error)
}

// ContentStore describes persistence operations for debate content.
type ContentStore interface {
	Create(ctx context.Context, item *ContentItem) error
	Find(ctx context.Context, id string) (*ContentItem, error)
	ListByProject(ctx context.Context, projectID string) ([]*ContentItem, error)
	Update(ctx context.Context, item *ContentItem) error
	SoftDelete(ctx context.Context, id string) error
}
