// ABOUTME: File storage keyed by unique path-like keys.
// ABOUTME: Content is kept as a blob; listings omit it and report size only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/airtruct-console/internal/api"
)

func scanFile(row rowScanner, withContent bool) (*api.File, error) {
	var f api.File
	var updated sql.NullTime
	dest := []any{&f.ID, &f.Key, &f.Size, &f.CreatedAt, &updated}
	if withContent {
		dest = append(dest, &f.Content)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if updated.Valid {
		t := updated.Time
		f.UpdatedAt = &t
	}
	return &f, nil
}

func (s *Store) ListFiles(ctx context.Context) ([]api.File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, key, length(content), created_at, updated_at FROM files ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []api.File{}
	for rows.Next() {
		f, err := scanFile(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (s *Store) GetFile(ctx context.Context, id int64) (*api.File, error) {
	f, err := scanFile(s.db.QueryRowContext(ctx, `SELECT id, key, length(content), created_at, updated_at, content FROM files WHERE id = ?`, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", id, api.ErrNotFound)
	}
	return f, err
}

func fileKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("file key is required")
	}
	return key, nil
}

func (s *Store) CreateFile(ctx context.Context, req api.FileRequest) (*api.File, error) {
	key, err := fileKey(req.Key)
	if err != nil {
		return nil, err
	}
	content := req.Content
	if content == nil {
		content = []byte{}
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO files (key, content, created_at) VALUES (?, ?, ?)`, key, content, s.now())
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("file %q: %w", key, api.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetFile(ctx, id)
}

func (s *Store) UpdateFile(ctx context.Context, id int64, req api.FileRequest) (*api.File, error) {
	key, err := fileKey(req.Key)
	if err != nil {
		return nil, err
	}
	content := req.Content
	if content == nil {
		content = []byte{}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE files SET key = ?, content = ?, updated_at = ? WHERE id = ?`, key, content, s.now(), id)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("file %q: %w", key, api.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("file %d: %w", id, api.ErrNotFound)
	}
	return s.GetFile(ctx, id)
}

func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("file %d: %w", id, api.ErrNotFound)
	}
	return nil
}
