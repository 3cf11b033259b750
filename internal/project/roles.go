package project

import (
	"fmt"
	"strings"
)

// MemberRole is a project-scoped role carried by a membership.
type MemberRole string

const (
	// RoleCoordinator has full write and management rights over the project.
	RoleCoordinator MemberRole = "coordinator"
	// RoleWriter may author and edit project content.
	RoleWriter MemberRole = "writer"
	// RoleObserver may only read.
	RoleObserver MemberRole = "observer"
	// RoleApplicant is a pending membership request, not yet a granted role.
	RoleApplicant MemberRole = "applicant"
)

// ParseMemberRole normalizes and validates a role string.
func ParseMemberRole(raw string) (MemberRole, error) {
	role := MemberRole(strings.TrimSpace(strings.ToLower(raw)))
	switch role {
	case RoleCoordinator, RoleWriter, RoleObserver, RoleApplicant:
		return role, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
}

// CanWrite reports whether the role allows content mutation.
func (r MemberRole) CanWrite() bool {
	return r == RoleCoordinator || r == RoleWriter
}

// Granted reports whether the role is an actual membership rather than a
// pending application.
func (r MemberRole) Granted() bool {
	return r == RoleCoordinator || r == RoleWriter || r == RoleObserver
}
