package pg

import (
	"context"
	"database/sql"
	"errors"

	"civica.org/internal/ids"
	"civica.org/internal/project"
)

// ContentStore implements project.ContentStore.
type ContentStore struct {
	db *sql.DB
}

var _ project.ContentStore = (*ContentStore)(nil)

// Content returns the content store slice of the pool.
func (s *Store) Content() *ContentStore { return &ContentStore{db: s.db} }

const contentColumns = `id, kind, used, project_id, parent_id, author_id, body, created_at, updated_at, deleted_at`

func (s *ContentStore) Create(ctx context.Context, item *project.ContentItem) error {
	if item.ID == "" {
		item.ID = ids.New()
	}
	// The owning project is resolved through the parent chain at insert
	// time; a top-level item carries its project directly.
	if item.ProjectID == "" && item.ParentID != "" {
		var projectID sql.NullString
		err := s.db.QueryRowContext(ctx, `
			select project_id from content_items where id = $1
		`, item.ParentID).Scan(&projectID)
		if errors.Is(err, sql.ErrNoRows) {
			return project.ErrInvalidInput
		}
		if err != nil {
			return err
		}
		if projectID.Valid {
			item.ProjectID = projectID.String
		}
	}
	row := s.db.QueryRowContext(ctx, `
		insert into content_items (id, kind, used, project_id, parent_id, author_id, body)
		values ($1, $2, $3, nullif($4, ''), nullif($5, ''), $6, $7)
		returning created_at, updated_at
	`, item.ID, string(item.Kind), item.Used, item.ProjectID, item.ParentID, item.AuthorID, item.Body)
	if err := row.Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return project.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *ContentStore) Find(ctx context.Context, id string) (*project.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `select `+contentColumns+` from content_items where id = $1`, id)
	return scanContent(row)
}

func (s *ContentStore) ListByProject(ctx context.Context, projectID string) ([]*project.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+contentColumns+` from content_items
		where project_id = $1 and deleted_at is null
		order by created_at asc
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*project.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (s *ContentStore) Update(ctx context.Context, item *project.ContentItem) error {
	res, err := s.db.ExecContext(ctx, `
		update content_items set body = $2, used = $3, updated_at = now()
		where id = $1 and deleted_at is null
	`, item.ID, item.Body, item.Used)
	if err != nil {
		return err
	}
	return requireRow(res, project.ErrNotFound)
}

func (s *ContentStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update content_items set deleted_at = now(), updated_at = now()
		where id = $1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	return requireRow(res, project.ErrNotFound)
}

func scanContent(row rowScanner) (*project.ContentItem, error) {
	var (
		item      project.ContentItem
		kind      string
		projectID sql.NullString
		parentID  sql.NullString
		deletedAt sql.NullTime
	)
	err := row.Scan(&item.ID, &kind, &item.Used, &projectID, &parentID, &item.AuthorID,
		&item.Body, &item.CreatedAt, &item.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	item.Kind = project.ContentKind(kind)
	item.ProjectID = projectID.String
	item.ParentID = parentID.String
	if deletedAt.Valid {
		t := deletedAt.Time
		item.DeletedAt = &t
	}
	return &item, nil
}
