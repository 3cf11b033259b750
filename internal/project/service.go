package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service implements the membership role model: role lookups, the role
// state machine and its guards. Permission questions (who may trigger a
// transition) are answered by the evaluator, not here.
type Service struct {
	projects Store
	members  MembershipStore
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(projects Store, members MembershipStore, opts ...ServiceOption) *Service {
	s := &Service{projects: projects, members: members, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RoleOf returns the identity's role in the project, or false when the
// identity holds no membership there.
func (s *Service) RoleOf(ctx context.Context, identityID, projectID string) (MemberRole, bool, error) {
	m, err := s.members.FindByProjectAndIdentity(ctx, projectID, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return m.Role, true, nil
}

// MembersByRole lists the project's memberships holding the given role.
func (s *Service) MembersByRole(ctx context.Context, projectID string, role MemberRole) ([]*Membership, error) {
	all, err := s.members.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var out []*Membership
	for _, m := range all {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out, nil
}

// Apply files a membership request. The new membership always starts in
// the applicant role; granting it is a separate, guarded transition.
func (s *Service) Apply(ctx context.Context, projectID, identityID, motivation, skills string) (*Membership, error) {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(identityID) == "" {
		return nil, fmt.Errorf("%w: project and identity are required", ErrInvalidInput)
	}
	p, err := s.projects.Find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Deleted() {
		return nil, ErrNotFound
	}
	now := s.now().UTC()
	m := &Membership{
		ProjectID:  projectID,
		IdentityID: identityID,
		Role:       RoleApplicant,
		Motivation: strings.TrimSpace(motivation),
		Skills:     strings.TrimSpace(skills),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.members.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ChangeRole moves a membership to a new role, enforcing the state machine:
//
//	applicant            -> writer | observer
//	writer | observer    -> writer | observer | coordinator
//	coordinator          -> writer | observer   (guarded)
//
// A granted membership never returns to applicant, and a coordinator may
// not be demoted while it is the sole coordinator of a project that still
// has writers. The guard is re-checked inside the store transaction.
func (s *Service) ChangeRole(ctx context.Context, membershipID string, newRole MemberRole) ([]Effect, error) {
	m, err := s.members.Find(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if m.Role == newRole {
		return nil, nil
	}
	if err := validateTransition(m.Role, newRole); err != nil {
		return nil, err
	}
	if m.Role == RoleCoordinator {
		blocked, err := s.lastCoordinatorBlocked(ctx, m.ProjectID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, ErrLastCoordinator
		}
	}
	if err := s.members.ChangeRoleGuarded(ctx, membershipID, newRole); err != nil {
		return nil, err
	}

	effect := Effect{
		Kind:       EffectNotifyRoleChanged,
		IdentityID: m.IdentityID,
		ProjectID:  m.ProjectID,
		Payload:    map[string]string{"previous_role": string(m.Role), "new_role": string(newRole)},
	}
	if m.Role == RoleApplicant {
		effect.Kind = EffectNotifyApplicationGranted
	}
	return []Effect{effect}, nil
}

// Remove deletes a membership: withdrawal, rejection, self-removal or a
// coordinator removing a member. A coordinator membership is subject to the
// last-coordinator guard. notifyMember controls whether an effect for the
// removed member is returned (self-removal needs none).
func (s *Service) Remove(ctx context.Context, membershipID string, notifyMember bool) ([]Effect, error) {
	m, err := s.members.Find(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if m.Role == RoleCoordinator {
		blocked, err := s.lastCoordinatorBlocked(ctx, m.ProjectID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, ErrLastCoordinator
		}
	}
	if err := s.members.DeleteGuarded(ctx, membershipID); err != nil {
		return nil, err
	}
	if !notifyMember {
		return nil, nil
	}
	return []Effect{{
		Kind:       EffectNotifyRemoved,
		IdentityID: m.IdentityID,
		ProjectID:  m.ProjectID,
		Payload:    map[string]string{"role": string(m.Role)},
	}}, nil
}

// UpdateApplication edits the applicant-only fields. Once the application
// has been granted these fields are frozen.
func (s *Service) UpdateApplication(ctx context.Context, membershipID, motivation, skills string) error {
	m, err := s.members.Find(ctx, membershipID)
	if err != nil {
		return err
	}
	if m.Role != RoleApplicant {
		return ErrApplicationFrozen
	}
	m.Motivation = strings.TrimSpace(motivation)
	m.Skills = strings.TrimSpace(skills)
	m.UpdatedAt = s.now().UTC()
	return s.members.Update(ctx, m)
}

// UpdateTasks edits the task description of a granted membership.
func (s *Service) UpdateTasks(ctx context.Context, membershipID, tasks string) error {
	m, err := s.members.Find(ctx, membershipID)
	if err != nil {
		return err
	}
	if !m.Role.Granted() {
		return fmt.Errorf("%w: applicant has no tasks", ErrInvalidInput)
	}
	m.Tasks = strings.TrimSpace(tasks)
	m.UpdatedAt = s.now().UTC()
	return s.members.Update(ctx, m)
}

func (s *Service) lastCoordinatorBlocked(ctx context.Context, projectID string) (bool, error) {
	coordinators, err := s.members.CountByRole(ctx, projectID, RoleCoordinator)
	if err != nil {
		return false, err
	}
	if coordinators != 1 {
		return false, nil
	}
	writers, err := s.members.CountByRole(ctx, projectID, RoleWriter)
	if err != nil {
		return false, err
	}
	// Observers and applicants do not block demotion, only writers do.
	return writers > 0, nil
}

func validateTransition(from, to MemberRole) error {
	if !to.Granted() {
		// Nothing ever transitions back to applicant.
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	switch from {
	case RoleApplicant:
		if to == RoleCoordinator {
			return fmt.Errorf("%w: an application cannot be granted coordinator directly", ErrInvalidTransition)
		}
		return nil
	case RoleWriter, RoleObserver, RoleCoordinator:
		return nil
	}
	return fmt.Errorf("%w: unknown role %s", ErrInvalidTransition, from)
}
