// ABOUTME: Tests for secrets, files, workers, events, and local validation.
// ABOUTME: Exercises the store through the same surface the console uses.

package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/2389/airtruct-console/internal/api"
)

func TestSecrets(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, k := range []string{"B_KEY", "A_KEY"} {
		if err := s.CreateSecret(ctx, api.SecretRequest{Key: k, Value: "v"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateSecret(ctx, api.SecretRequest{Key: "A_KEY", Value: "w"}); !errors.Is(err, api.ErrConflict) {
		t.Errorf("duplicate key error = %v", err)
	}
	if err := s.CreateSecret(ctx, api.SecretRequest{Key: "  "}); err == nil {
		t.Error("blank key accepted")
	}

	list, err := s.ListSecrets(ctx)
	if err != nil || len(list) != 2 || list[0].Key != "A_KEY" {
		t.Errorf("ListSecrets() = %+v, %v", list, err)
	}
	if err := s.DeleteSecret(ctx, "A_KEY"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSecret(ctx, "A_KEY"); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func TestFiles(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	f, err := s.CreateFile(ctx, api.FileRequest{Key: "schemas/order.json", Content: []byte(`{"type":"object"}`)})
	if err != nil {
		t.Fatal(err)
	}
	if f.Size != 17 || f.UpdatedAt != nil {
		t.Errorf("created = %+v", f)
	}
	if _, err := s.CreateFile(ctx, api.FileRequest{Key: "schemas/order.json"}); !errors.Is(err, api.ErrConflict) {
		t.Errorf("duplicate key error = %v", err)
	}

	updated, err := s.UpdateFile(ctx, f.ID, api.FileRequest{Key: "schemas/order.json", Content: []byte("{}")})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(updated.Content, []byte("{}")) || updated.Size != 2 || updated.UpdatedAt == nil {
		t.Errorf("updated = %+v", updated)
	}

	list, err := s.ListFiles(ctx)
	if err != nil || len(list) != 1 || list[0].Content != nil || list[0].Size != 2 {
		t.Errorf("ListFiles() = %+v, %v", list, err)
	}
	if err := s.DeleteFile(ctx, f.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetFile(ctx, f.ID); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("GetFile() after delete error = %v", err)
	}
}

func TestWorkers(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	beat := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.UpsertWorker(ctx, api.Worker{ID: "w1", Status: "active", Address: "10.0.0.1:7070", LastHeartbeat: &beat}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertWorker(ctx, api.Worker{ID: "w1", Status: "inactive", Address: "10.0.0.1:7070", ActiveStreams: 2}); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListWorkers(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListWorkers() = %+v, %v", list, err)
	}
	if list[0].Status != "inactive" || list[0].ActiveStreams != 2 || list[0].LastHeartbeat == nil || list[0].CreatedAt == nil {
		t.Errorf("worker = %+v", list[0])
	}
}

func TestStreamEvents_Paging(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	st, err := s.CreateStream(ctx, sampleStream())
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ev := api.StreamEvent{FlowID: "flow", Section: "pipeline", ComponentLabel: "clean", Type: "PRODUCE",
			Content: "{}", Meta: map[string]any{"n": float64(i)}, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if _, err := s.RecordEvent(ctx, st.ID, ev); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.StreamEvents(ctx, st.ID, api.EventQuery{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 || len(page.Data) != 2 || page.Data[0].Meta["n"] != float64(4) {
		t.Errorf("first page = %+v", page)
	}

	window, err := s.StreamEvents(ctx, st.ID, api.EventQuery{Start: base.Add(time.Minute), End: base.Add(3 * time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if window.Total != 3 || len(window.Data) != 3 {
		t.Errorf("window = %d/%d", len(window.Data), window.Total)
	}
	if _, err := s.StreamEvents(ctx, 404, api.EventQuery{}); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("missing stream error = %v", err)
	}
}

func TestValidateStream(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	res, err := s.ValidateStream(ctx, sampleStream())
	if err != nil || !res.Valid {
		t.Fatalf("valid stream = %+v, %v", res, err)
	}

	bad := sampleStream()
	bad.Name = ""
	bad.OutputComponent = ""
	bad.Processors = append(bad.Processors, api.Processor{Label: "x", Component: "no_such_thing"})
	res, err = s.ValidateStream(ctx, bad)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatal("invalid stream accepted")
	}
	for _, want := range []string{"name is required", `processor "x": unknown component "no_such_thing"`, "output: no component selected"} {
		if !strings.Contains(res.Error, want) {
			t.Errorf("error %q missing %q", res.Error, want)
		}
	}

	tried, err := s.TryStream(ctx, api.TryRequest{Processors: sampleStream().Processors, Messages: []api.TryMessage{{Content: "{}"}}})
	if err != nil || tried.Error != ErrTryUnavailable {
		t.Errorf("TryStream() = %+v, %v", tried, err)
	}
}
