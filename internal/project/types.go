package project

import "time"

// State is the publication lifecycle state of a project.
type State string

const (
	StateDraft   State = "draft"
	StatePublic  State = "public"
	StatePrivate State = "private"
)

// Project is a citizen-proposal workspace with an ordered member roster.
// A locked or deleted project rejects all content mutation except
// membership removal.
type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	State     State      `json:"state"`
	Locked    bool       `json:"locked"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the project has been soft-deleted.
func (p *Project) Deleted() bool {
	return p != nil && p.DeletedAt != nil
}

// AcceptsContent reports whether content inside the project may still be
// mutated by regular members.
func (p *Project) AcceptsContent() bool {
	return p != nil && !p.Locked && p.DeletedAt == nil
}

// Membership links an identity to a project with exactly one role.
// Memberships are owned by the project and cascade-delete with it; the
// identity reference is lookup-only.
type Membership struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	IdentityID string     `json:"identity_id"`
	Role       MemberRole `json:"role"`
	// Motivation and Skills are filled in by an applicant and frozen once
	// the application is granted.
	Motivation string    `json:"motivation,omitempty"`
	Skills     string    `json:"skills,omitempty"`
	Tasks      string    `json:"tasks,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
