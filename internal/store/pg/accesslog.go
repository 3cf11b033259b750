package pg

import (
	"context"
	"database/sql"
	"time"

	"civica.org/internal/accesslog"
	"civica.org/internal/ids"
)

// AccessLogStore implements accesslog.Store.
type AccessLogStore struct {
	db *sql.DB
}

var _ accesslog.Store = (*AccessLogStore)(nil)

// AccessLog returns the access-log store slice of the pool.
func (s *Store) AccessLog() *AccessLogStore { return &AccessLogStore{db: s.db} }

func (s *AccessLogStore) Append(ctx context.Context, e *accesslog.Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into access_log (id, occurred_at, kind, ip, username)
		values ($1, $2, $3, nullif($4, ''), nullif($5, ''))
	`, e.ID, e.OccurredAt, string(e.Kind), e.IP, e.Username)
	return err
}

func (s *AccessLogStore) CountByIP(ctx context.Context, kinds []accesslog.Kind, since time.Time, ip string) (int, error) {
	return s.count(ctx, kinds, since, `ip = $3`, ip)
}

func (s *AccessLogStore) CountByUsername(ctx context.Context, kinds []accesslog.Kind, since time.Time, username string) (int, error) {
	return s.count(ctx, kinds, since, `username = $3`, username)
}

func (s *AccessLogStore) count(ctx context.Context, kinds []accesslog.Kind, since time.Time, cond string, arg any) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from access_log
		where kind = any($1) and occurred_at >= $2 and `+cond,
		kindsToText(kinds), since, arg).Scan(&n)
	return n, err
}

func (s *AccessLogStore) Anonymize(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		update access_log set ip = null, username = null
		where occurred_at < $1 and (ip is not null or username is not null)
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AccessLogStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from access_log where occurred_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func kindsToText(kinds []accesslog.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
