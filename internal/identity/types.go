package identity

import "time"

// Role is a platform-wide role attached to an identity. Project-level roles
// live on memberships, not here.
type Role string

const (
	RoleUser           Role = "user"
	RoleProcessManager Role = "process-manager"
	RoleAdministrator  Role = "administrator"
)

// Identity represents a registered principal. Anonymous visitors have no
// Identity at all and are modelled as a nil actor at the evaluator.
type Identity struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Roles        []Role     `json:"roles"`
	Active       bool       `json:"active"`
	Validated    bool       `json:"validated"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// HasRole reports whether the identity carries the given platform role.
func (i *Identity) HasRole(role Role) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Deleted reports whether the identity has been soft-deleted.
func (i *Identity) Deleted() bool {
	return i != nil && i.DeletedAt != nil
}

// Usable reports whether the identity may act at all: it must be active,
// validated and not deleted. Deleted or unvalidated accounts lose their
// permissions regardless of any role they hold.
func (i *Identity) Usable() bool {
	return i != nil && i.Active && i.Validated && i.DeletedAt == nil
}

// Privileged reports whether the identity holds a staff role and is still
// usable. Staff roles on a disabled account grant nothing.
func (i *Identity) Privileged() bool {
	if !i.Usable() {
		return false
	}
	return i.HasRole(RoleAdministrator) || i.HasRole(RoleProcessManager)
}
