package pg

import (
	"context"
	"database/sql"
	"errors"

	"civica.org/internal/ids"
	"civica.org/internal/project"
)

// MembershipStore implements project.MembershipStore.
type MembershipStore struct {
	db *sql.DB
}

var _ project.MembershipStore = (*MembershipStore)(nil)

// Memberships returns the membership store slice of the pool.
func (s *Store) Memberships() *MembershipStore { return &MembershipStore{db: s.db} }

const membershipColumns = `id, project_id, identity_id, role, motivation, skills, tasks, created_at, updated_at`

func (s *MembershipStore) Create(ctx context.Context, m *project.Membership) error {
	if m.ID == "" {
		m.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into memberships (id, project_id, identity_id, role, motivation, skills, tasks)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, m.ID, m.ProjectID, m.IdentityID, string(m.Role), m.Motivation, m.Skills, m.Tasks)
	if err := row.Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return project.ErrConflict
			case pgErrForeignKeyViolation:
				return project.ErrInvalidInput
			}
		}
		return err
	}
	return nil
}

func (s *MembershipStore) Find(ctx context.Context, id string) (*project.Membership, error) {
	row := s.db.QueryRowContext(ctx, `select `+membershipColumns+` from memberships where id = $1`, id)
	return scanMembership(row)
}

func (s *MembershipStore) FindByProjectAndIdentity(ctx context.Context, projectID, identityID string) (*project.Membership, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+membershipColumns+` from memberships
		where project_id = $1 and identity_id = $2
	`, projectID, identityID)
	return scanMembership(row)
}

func (s *MembershipStore) ListByProject(ctx context.Context, projectID string) ([]*project.Membership, error) {
	return s.list(ctx, `project_id = $1`, projectID)
}

func (s *MembershipStore) ListByIdentity(ctx context.Context, identityID string) ([]*project.Membership, error) {
	return s.list(ctx, `identity_id = $1`, identityID)
}

func (s *MembershipStore) list(ctx context.Context, cond string, arg any) ([]*project.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+membershipColumns+` from memberships
		where `+cond+` order by created_at asc
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*project.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *MembershipStore) CountByRole(ctx context.Context, projectID string, role project.MemberRole) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from memberships where project_id = $1 and role = $2
	`, projectID, string(role)).Scan(&n)
	return n, err
}

func (s *MembershipStore) Update(ctx context.Context, m *project.Membership) error {
	res, err := s.db.ExecContext(ctx, `
		update memberships
		set motivation = $2, skills = $3, tasks = $4, updated_at = now()
		where id = $1
	`, m.ID, m.Motivation, m.Skills, m.Tasks)
	if err != nil {
		return err
	}
	return requireRow(res, project.ErrNotFound)
}

// ChangeRoleGuarded updates the role inside one transaction, re-checking
// the last-coordinator guard against rows locked for update so the data
// visible at commit time decides.
func (s *MembershipStore) ChangeRoleGuarded(ctx context.Context, membershipID string, newRole project.MemberRole) error {
	return s.guardedMutation(ctx, membershipID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			update memberships set role = $2, updated_at = now() where id = $1
		`, membershipID, string(newRole))
		if err != nil {
			return err
		}
		return requireRow(res, project.ErrNotFound)
	})
}

// DeleteGuarded removes the membership inside one transaction, subject to
// the same guard.
func (s *MembershipStore) DeleteGuarded(ctx context.Context, membershipID string) error {
	return s.guardedMutation(ctx, membershipID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `delete from memberships where id = $1`, membershipID)
		if err != nil {
			return err
		}
		return requireRow(res, project.ErrNotFound)
	})
}

func (s *MembershipStore) guardedMutation(ctx context.Context, membershipID string, mutate func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		projectID string
		role      string
	)
	err = tx.QueryRowContext(ctx, `
		select project_id, role from memberships where id = $1 for update
	`, membershipID).Scan(&projectID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return project.ErrNotFound
	}
	if err != nil {
		return err
	}

	if project.MemberRole(role) == project.RoleCoordinator {
		// Aggregates cannot take row locks, so lock the roster first and
		// count the locked rows.
		rows, err := tx.QueryContext(ctx, `
			select role from memberships where project_id = $1 for update
		`, projectID)
		if err != nil {
			return err
		}
		var coordinators, writers int
		for rows.Next() {
			var r string
			if err := rows.Scan(&r); err != nil {
				rows.Close()
				return err
			}
			switch project.MemberRole(r) {
			case project.RoleCoordinator:
				coordinators++
			case project.RoleWriter:
				writers++
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if coordinators == 1 && writers > 0 {
			return project.ErrLastCoordinator
		}
	}

	if err := mutate(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// SoleCoordinatorWithWriters reports whether the identity anchors any
// project: it is its only coordinator while writers remain.
func (s *MembershipStore) SoleCoordinatorWithWriters(ctx context.Context, identityID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1
			from memberships m
			where m.identity_id = $1 and m.role = 'coordinator'
			and 1 = (select count(*) from memberships c
			         where c.project_id = m.project_id and c.role = 'coordinator')
			and 0 < (select count(*) from memberships w
			         where w.project_id = m.project_id and w.role = 'writer')
		)
	`, identityID).Scan(&exists)
	return exists, err
}

func scanMembership(row rowScanner) (*project.Membership, error) {
	var (
		m    project.Membership
		role string
	)
	err := row.Scan(&m.ID, &m.ProjectID, &m.IdentityID, &role, &m.Motivation, &m.Skills, &m.Tasks, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Role = project.MemberRole(role)
	return &m, nil
}
