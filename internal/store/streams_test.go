// ABOUTME: Tests for stream storage, versioning, and deletion.
// ABOUTME: Also covers the buffer reference checks shared with resources.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/2389/airtruct-console/internal/api"
)

func sampleStream() api.StreamRequest {
	return api.StreamRequest{
		Name:            "orders",
		InputLabel:      "in",
		InputComponent:  "kafka",
		InputConfig:     "addresses:\n  - localhost:9092\ntopics:\n  - orders\nconsumer_group: c\n",
		OutputLabel:     "out",
		OutputComponent: "sync_response",
		Processors: []api.Processor{
			{Label: "clean", Component: "mapping", Config: "root = this"},
		},
	}
}

func TestStreams_CreateGetList(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	created, err := s.CreateStream(ctx, sampleStream())
	if err != nil {
		t.Fatalf("CreateStream() error = %v", err)
	}
	if created.ID == 0 || created.Status != api.StatusActive || created.CreatedAt.IsZero() {
		t.Errorf("created = %+v", created)
	}
	if len(created.Processors) != 1 || created.Processors[0].Config != "root = this" {
		t.Errorf("processors = %+v", created.Processors)
	}

	got, err := s.GetStream(ctx, created.ID)
	if err != nil || got.Name != "orders" || got.InputConfig != sampleStream().InputConfig {
		t.Errorf("GetStream() = %+v, %v", got, err)
	}

	httpReq := sampleStream()
	httpReq.InputComponent = "http_server"
	httpReq.Processors = nil
	second, err := s.CreateStream(ctx, httpReq)
	if err != nil {
		t.Fatal(err)
	}
	if !second.IsHTTPServer || second.Processors == nil {
		t.Errorf("http stream = %+v", second)
	}

	list, err := s.ListStreams(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListStreams() = %d, %v", len(list), err)
	}
}

func TestStreams_UpdateCreatesVersion(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	v1, err := s.CreateStream(ctx, sampleStream())
	if err != nil {
		t.Fatal(err)
	}
	req := v1.Request()
	req.Status = api.StatusPaused
	v2, err := s.UpdateStream(ctx, v1.ID, req)
	if err != nil {
		t.Fatalf("UpdateStream() error = %v", err)
	}
	if v2.ID == v1.ID || v2.ParentID != v1.ID || v2.Status != api.StatusPaused {
		t.Errorf("v2 = %+v", v2)
	}
	v3, err := s.UpdateStream(ctx, v2.ID, req)
	if err != nil {
		t.Fatal(err)
	}
	if v3.ParentID != v1.ID {
		t.Errorf("v3 parent = %d, want lineage root %d", v3.ParentID, v1.ID)
	}

	if _, err := s.UpdateStream(ctx, v1.ID, req); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("updating a retired version error = %v", err)
	}
	list, _ := s.ListStreams(ctx)
	if len(list) != 1 || list[0].ID != v3.ID {
		t.Errorf("ListStreams() = %+v", list)
	}
	if old, err := s.GetStream(ctx, v1.ID); err != nil || old.Status != api.StatusActive {
		t.Errorf("history lost: %+v, %v", old, err)
	}
}

func TestStreams_UpdateStatusHelper(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	created, err := s.CreateStream(ctx, sampleStream())
	if err != nil {
		t.Fatal(err)
	}
	updated, err := api.UpdateStreamStatus(ctx, s, created.ID, api.StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != api.StatusCompleted || updated.InputConfig != created.InputConfig {
		t.Errorf("updated = %+v", updated)
	}
}

func TestStreams_DeleteRemovesLineageAndEvents(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	v1, _ := s.CreateStream(ctx, sampleStream())
	v2, err := s.UpdateStream(ctx, v1.ID, v1.Request())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordEvent(ctx, v1.ID, api.StreamEvent{FlowID: "f", Section: "input", Type: "CONSUME"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteStream(ctx, v2.ID); err != nil {
		t.Fatalf("DeleteStream() error = %v", err)
	}
	if _, err := s.GetStream(ctx, v1.ID); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("old version survived: %v", err)
	}
	var events int
	s.db.QueryRow("SELECT COUNT(*) FROM stream_events").Scan(&events)
	if events != 0 {
		t.Errorf("events left = %d", events)
	}
	if err := s.DeleteStream(ctx, v2.ID); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func TestStreams_BufferMustExist(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	missing := int64(99)
	req := sampleStream()
	req.BufferID = &missing
	if _, err := s.CreateStream(ctx, req); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("CreateStream(missing buffer) error = %v", err)
	}

	buf, err := s.CreateResource(ctx, api.KindBuffers, api.ResourceRequest{Label: "b", Component: "memory", Config: "limit: 1000\n"})
	if err != nil {
		t.Fatal(err)
	}
	req.BufferID = &buf.ID
	created, err := s.CreateStream(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if created.BufferID == nil || *created.BufferID != buf.ID {
		t.Errorf("buffer id = %v", created.BufferID)
	}
	if err := s.DeleteResource(ctx, api.KindBuffers, buf.ID); !errors.Is(err, api.ErrConflict) {
		t.Errorf("deleting a used buffer error = %v", err)
	}
}
