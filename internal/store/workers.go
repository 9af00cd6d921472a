// ABOUTME: Worker registry and per-stream event log for local mode.
// ABOUTME: The seed command fills both so the workers and events pages have data.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389/airtruct-console/internal/api"
)

func (s *Store) ListWorkers(ctx context.Context) ([]api.Worker, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, status, address, last_heartbeat, active_streams, created_at FROM workers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []api.Worker{}
	for rows.Next() {
		var w api.Worker
		var beat sql.NullTime
		var created time.Time
		if err := rows.Scan(&w.ID, &w.Status, &w.Address, &beat, &w.ActiveStreams, &created); err != nil {
			return nil, err
		}
		if beat.Valid {
			t := beat.Time
			w.LastHeartbeat = &t
		}
		w.CreatedAt = &created
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpsertWorker registers a worker or refreshes its heartbeat.
func (s *Store) UpsertWorker(ctx context.Context, w api.Worker) error {
	beat := s.now()
	if w.LastHeartbeat != nil {
		beat = w.LastHeartbeat.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (id, status, address, last_heartbeat, active_streams, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, address = excluded.address,
			last_heartbeat = excluded.last_heartbeat, active_streams = excluded.active_streams
	`, w.ID, w.Status, w.Address, beat, w.ActiveStreams, s.now())
	return err
}

// RecordEvent appends a traced message event to a stream.
func (s *Store) RecordEvent(ctx context.Context, streamID int64, ev api.StreamEvent) (int64, error) {
	meta := ev.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return 0, err
	}
	at := ev.CreatedAt
	if at.IsZero() {
		at = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stream_events (stream_id, worker_stream_id, flow_id, section, component_label, type, content, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, streamID, ev.WorkerStreamID, ev.FlowID, ev.Section, ev.ComponentLabel, ev.Type, ev.Content, string(data), at.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// StreamEvents pages through a stream's events, newest first.
func (s *Store) StreamEvents(ctx context.Context, id int64, q api.EventQuery) (*api.EventPage, error) {
	if _, err := s.GetStream(ctx, id); err != nil {
		return nil, err
	}

	where := ` WHERE stream_id = ?`
	args := []any{id}
	if !q.Start.IsZero() {
		where += ` AND created_at >= ?`
		args = append(args, q.Start.UTC())
	}
	if !q.End.IsZero() {
		where += ` AND created_at <= ?`
		args = append(args, q.End.UTC())
	}

	page := &api.EventPage{Data: []api.StreamEvent{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stream_events`+where, args...).Scan(&page.Total); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, worker_stream_id, flow_id, section, component_label, type, content, meta, created_at
		FROM stream_events`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ev api.StreamEvent
		var meta string
		if err := rows.Scan(&ev.ID, &ev.WorkerStreamID, &ev.FlowID, &ev.Section, &ev.ComponentLabel, &ev.Type, &ev.Content, &meta, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &ev.Meta); err != nil {
			return nil, fmt.Errorf("decode meta of event %d: %w", ev.ID, err)
		}
		page.Data = append(page.Data, ev)
	}
	return page, rows.Err()
}
