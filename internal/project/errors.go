package project

import "errors"

var (
	ErrNotFound     = errors.New("project: not found")
	ErrConflict     = errors.New("project: already exists")
	ErrInvalidInput = errors.New("project: invalid input")

	// ErrLastCoordinator signals that demoting or removing a coordinator
	// would leave the project without leadership while writers remain.
	ErrLastCoordinator = errors.New("project: cannot remove the last coordinator while writers remain")

	// ErrInvalidTransition signals a role change the membership state
	// machine does not allow.
	ErrInvalidTransition = errors.New("project: invalid role transition")

	// ErrApplicationFrozen signals an attempt to edit applicant-only fields
	// after the application was granted.
	ErrApplicationFrozen = errors.New("project: application fields are frozen after promotion")
)
