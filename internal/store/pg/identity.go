package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"civica.org/internal/identity"
	"civica.org/internal/ids"
)

// IdentityStore implements identity.Store.
type IdentityStore struct {
	db *sql.DB
}

var _ identity.Store = (*IdentityStore)(nil)

// Identities returns the identity store slice of the pool.
func (s *Store) Identities() *IdentityStore { return &IdentityStore{db: s.db} }

const identityColumns = `id, username, email, password_hash, roles, active, validated, created_at, updated_at, deleted_at`

func (s *IdentityStore) Create(ctx context.Context, id *identity.Identity) error {
	if id.ID == "" {
		id.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into identities (id, username, email, password_hash, roles, active, validated)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, id.ID, id.Username, id.Email, id.PasswordHash, rolesToText(id.Roles), id.Active, id.Validated)
	if err := row.Scan(&id.CreatedAt, &id.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return identity.ErrConflict
		}
		return err
	}
	return nil
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (*identity.Identity, error) {
	return s.findBy(ctx, `id = $1`, id)
}

func (s *IdentityStore) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	return s.findBy(ctx, `username = $1`, username)
}

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	return s.findBy(ctx, `email = $1`, email)
}

func (s *IdentityStore) findBy(ctx context.Context, cond string, arg any) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx, `select `+identityColumns+` from identities where `+cond, arg)
	return scanIdentity(row)
}

func (s *IdentityStore) Update(ctx context.Context, id *identity.Identity) error {
	res, err := s.db.ExecContext(ctx, `
		update identities
		set username = $2, email = $3, roles = $4, active = $5, validated = $6, updated_at = now()
		where id = $1 and deleted_at is null
	`, id.ID, id.Username, id.Email, rolesToText(id.Roles), id.Active, id.Validated)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return identity.ErrConflict
		}
		return err
	}
	return requireRow(res, identity.ErrNotFound)
}

func (s *IdentityStore) SetPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update identities set password_hash = $2, updated_at = now()
		where id = $1 and deleted_at is null
	`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res, identity.ErrNotFound)
}

func (s *IdentityStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update identities set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	return requireRow(res, identity.ErrNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*identity.Identity, error) {
	var (
		id        identity.Identity
		roles     string
		deletedAt sql.NullTime
	)
	err := row.Scan(&id.ID, &id.Username, &id.Email, &id.PasswordHash, &roles,
		&id.Active, &id.Validated, &id.CreatedAt, &id.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	id.Roles = rolesFromText(roles)
	if deletedAt.Valid {
		t := deletedAt.Time
		id.DeletedAt = &t
	}
	return &id, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Roles persist as a comma-separated text column; the set is tiny and
// fixed, a join table would be overkill.
func rolesToText(roles []identity.Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}

func rolesFromText(s string) []identity.Role {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	roles := make([]identity.Role, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			roles = append(roles, identity.Role(p))
		}
	}
	return roles
}
