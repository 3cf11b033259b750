package pg

import (
	"context"
	"database/sql"
	"errors"

	"civica.org/internal/ids"
	"civica.org/internal/project"
)

// ProjectStore implements project.Store.
type ProjectStore struct {
	db *sql.DB
}

var _ project.Store = (*ProjectStore)(nil)

// Projects returns the project store slice of the pool.
func (s *Store) Projects() *ProjectStore { return &ProjectStore{db: s.db} }

const projectColumns = `id, name, state, locked, created_at, updated_at, deleted_at`

func (s *ProjectStore) Create(ctx context.Context, p *project.Project) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.State == "" {
		p.State = project.StateDraft
	}
	row := s.db.QueryRowContext(ctx, `
		insert into projects (id, name, state, locked)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, p.ID, p.Name, string(p.State), p.Locked)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return project.ErrConflict
		}
		return err
	}
	return nil
}

func (s *ProjectStore) Find(ctx context.Context, id string) (*project.Project, error) {
	row := s.db.QueryRowContext(ctx, `select `+projectColumns+` from projects where id = $1`, id)
	return scanProject(row)
}

func (s *ProjectStore) List(ctx context.Context) ([]*project.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+projectColumns+` from projects
		where deleted_at is null
		order by created_at desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *ProjectStore) Update(ctx context.Context, p *project.Project) error {
	res, err := s.db.ExecContext(ctx, `
		update projects
		set name = $2, state = $3, locked = $4, updated_at = now()
		where id = $1 and deleted_at is null
	`, p.ID, p.Name, string(p.State), p.Locked)
	if err != nil {
		return err
	}
	return requireRow(res, project.ErrNotFound)
}

func (s *ProjectStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update projects set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	return requireRow(res, project.ErrNotFound)
}

func scanProject(row rowScanner) (*project.Project, error) {
	var (
		p         project.Project
		state     string
		deletedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &state, &p.Locked, &p.CreatedAt, &p.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.State = project.State(state)
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return &p, nil
}
