// ABOUTME: Storage for buffers, caches, rate limits, and component configs.
// ABOUTME: All four share one versioned table scoped by kind; labels are unique per kind.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/schema"
)

func scanResource(row rowScanner) (*api.Resource, error) {
	var r api.Resource
	var section string
	if err := row.Scan(&r.ID, &r.ParentID, &r.Label, &section, &r.Component, &r.Config, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Section = schema.Section(section)
	return &r, nil
}

const resourceColumns = `id, COALESCE(parent_id, 0), label, section, component, config, created_at`

func checkKind(kind api.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown resource kind %q", kind)
	}
	return nil
}

func (s *Store) ListResources(ctx context.Context, kind api.Kind) ([]api.Resource, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources
		WHERE kind = ? AND is_current = 1 ORDER BY label`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []api.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) GetResource(ctx context.Context, kind api.Kind, id int64) (*api.Resource, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	r, err := scanResource(s.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ? AND kind = ?`, id, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", kind, id, api.ErrNotFound)
	}
	return r, err
}

func (s *Store) insertResource(ctx context.Context, tx *sql.Tx, kind api.Kind, parent *int64, req api.ResourceRequest) (int64, error) {
	section := ""
	if kind == api.KindComponentConfigs {
		section = string(req.Section)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO resources (kind, parent_id, label, section, component, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(kind), parent, req.Label, section, req.Component, req.Config, s.now())
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("%s label %q: %w", kind, req.Label, api.ErrConflict)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) CreateResource(ctx context.Context, kind api.Kind, req api.ResourceRequest) (*api.Resource, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id, err := s.insertResource(ctx, tx, kind, nil, req)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetResource(ctx, kind, id)
}

// UpdateResource stores req as a new version. Streams keep pointing at the buffer id
// they were saved with, so buffers are updated in place instead.
func (s *Store) UpdateResource(ctx context.Context, kind api.Kind, id int64, req api.ResourceRequest) (*api.Resource, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	newID := id
	if kind == api.KindBuffers {
		res, err := tx.ExecContext(ctx, `UPDATE resources SET label = ?, component = ?, config = ?
			WHERE id = ? AND kind = ? AND is_current = 1`, req.Label, req.Component, req.Config, id, string(kind))
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s label %q: %w", kind, req.Label, api.ErrConflict)
		}
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("%s %d: %w", kind, id, api.ErrNotFound)
		}
	} else {
		root, err := retire(ctx, tx, "resources", id, string(kind))
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", kind, id, err)
		}
		if newID, err = s.insertResource(ctx, tx, kind, &root, req); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetResource(ctx, kind, newID)
}

func (s *Store) DeleteResource(ctx context.Context, kind api.Kind, id int64) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	root, err := lineageRoot(ctx, tx, "resources", id, string(kind))
	if err != nil {
		return fmt.Errorf("%s %d: %w", kind, id, err)
	}
	if kind == api.KindBuffers {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM streams WHERE buffer_id = ? AND is_current = 1`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("buffer %d is used by %d stream(s): %w", id, n, api.ErrConflict)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE kind = ? AND (id = ? OR parent_id = ?)`, string(kind), root, root); err != nil {
		return err
	}
	return tx.Commit()
}
