package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"civica.org/internal/token"
)

// TokenStore implements token.Store.
type TokenStore struct {
	db *sql.DB
}

var _ token.Store = (*TokenStore)(nil)

// Tokens returns the validation-token store slice of the pool.
func (s *Store) Tokens() *TokenStore { return &TokenStore{db: s.db} }

func (s *TokenStore) Create(ctx context.Context, t *token.Token) error {
	_, err := s.db.ExecContext(ctx, `
		insert into validation_tokens (id, identity_id, kind, secret_hash, payload, expires_at, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.IdentityID, string(t.Kind), t.SecretHash, t.Payload, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return token.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *TokenStore) Find(ctx context.Context, id string) (*token.Token, error) {
	var t token.Token
	var kind string
	err := s.db.QueryRowContext(ctx, `
		select id, identity_id, kind, secret_hash, payload, expires_at, created_at
		from validation_tokens where id = $1
	`, id).Scan(&t.ID, &t.IdentityID, &kind, &t.SecretHash, &t.Payload, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, token.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Kind = token.Kind(kind)
	return &t, nil
}

func (s *TokenStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from validation_tokens where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, token.ErrNotFound)
}

func (s *TokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from validation_tokens where expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
