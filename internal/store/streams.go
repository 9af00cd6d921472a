// ABOUTME: Stream storage with versioned updates.
// ABOUTME: Processors are stored as a JSON array alongside the stream row.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/airtruct-console/internal/api"
)

const streamColumns = `id, COALESCE(parent_id, 0), name, status, input_label, input_component, input_config,
	output_label, output_component, output_config, buffer_id, processors, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStream(row rowScanner) (*api.Stream, error) {
	var s api.Stream
	var buffer sql.NullInt64
	var procs string
	if err := row.Scan(&s.ID, &s.ParentID, &s.Name, &s.Status, &s.InputLabel, &s.InputComponent, &s.InputConfig,
		&s.OutputLabel, &s.OutputComponent, &s.OutputConfig, &buffer, &procs, &s.CreatedAt); err != nil {
		return nil, err
	}
	if buffer.Valid {
		id := buffer.Int64
		s.BufferID = &id
	}
	if err := json.Unmarshal([]byte(procs), &s.Processors); err != nil {
		return nil, fmt.Errorf("decode processors of stream %d: %w", s.ID, err)
	}
	if s.Processors == nil {
		s.Processors = []api.Processor{}
	}
	s.IsHTTPServer = s.InputComponent == "http_server"
	return &s, nil
}

func (s *Store) ListStreams(ctx context.Context) ([]api.Stream, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+streamColumns+` FROM streams WHERE is_current = 1 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	streams := []api.Stream{}
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		streams = append(streams, *st)
	}
	return streams, rows.Err()
}

func (s *Store) GetStream(ctx context.Context, id int64) (*api.Stream, error) {
	st, err := scanStream(s.db.QueryRowContext(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stream %d: %w", id, api.ErrNotFound)
	}
	return st, err
}

func (s *Store) checkBuffer(ctx context.Context, tx *sql.Tx, id *int64) error {
	if id == nil {
		return nil
	}
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE id = ? AND kind = ? AND is_current = 1`, *id, string(api.KindBuffers)).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("buffer %d: %w", *id, api.ErrNotFound)
	}
	return nil
}

func (s *Store) insertStream(ctx context.Context, tx *sql.Tx, parent *int64, req api.StreamRequest) (int64, error) {
	if err := s.checkBuffer(ctx, tx, req.BufferID); err != nil {
		return 0, err
	}
	procs := req.Processors
	if procs == nil {
		procs = []api.Processor{}
	}
	data, err := json.Marshal(procs)
	if err != nil {
		return 0, err
	}
	status := req.Status
	if status == "" {
		status = api.StatusActive
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO streams (parent_id, name, status, input_label, input_component, input_config,
			output_label, output_component, output_config, buffer_id, processors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, parent, req.Name, status, req.InputLabel, req.InputComponent, req.InputConfig,
		req.OutputLabel, req.OutputComponent, req.OutputConfig, req.BufferID, string(data), s.now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) CreateStream(ctx context.Context, req api.StreamRequest) (*api.Stream, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id, err := s.insertStream(ctx, tx, nil, req)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetStream(ctx, id)
}

// UpdateStream stores req as a new version of the stream and returns it.
func (s *Store) UpdateStream(ctx context.Context, id int64, req api.StreamRequest) (*api.Stream, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	root, err := retire(ctx, tx, "streams", id, "")
	if err != nil {
		return nil, fmt.Errorf("stream %d: %w", id, err)
	}
	newID, err := s.insertStream(ctx, tx, &root, req)
	if err != nil {
		return nil, fmt.Errorf("update stream %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetStream(ctx, newID)
}

// DeleteStream removes every version of the stream along with its events.
func (s *Store) DeleteStream(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	root, err := lineageRoot(ctx, tx, "streams", id, "")
	if err != nil {
		return fmt.Errorf("stream %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stream_events WHERE stream_id IN (SELECT id FROM streams WHERE id = ? OR parent_id = ?)`, root, root); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM streams WHERE id = ? OR parent_id = ?`, root, root); err != nil {
		return err
	}
	return tx.Commit()
}

// lineageRoot returns the first version's id for the current row id.
// Only current rows are addressable for writes.
func lineageRoot(ctx context.Context, tx *sql.Tx, table string, id int64, kind string) (int64, error) {
	query := `SELECT COALESCE(parent_id, id) FROM ` + table + ` WHERE id = ? AND is_current = 1`
	args := []any{id}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	var root int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&root)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, api.ErrNotFound
	}
	return root, err
}

// retire marks a current row as superseded and returns its lineage root.
func retire(ctx context.Context, tx *sql.Tx, table string, id int64, kind string) (int64, error) {
	root, err := lineageRoot(ctx, tx, table, id, kind)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET is_current = 0 WHERE id = ?`, id); err != nil {
		return 0, err
	}
	return root, nil
}
