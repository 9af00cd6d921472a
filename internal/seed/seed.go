// ABOUTME: Populates a local store with resources, secrets, files, streams, workers and events.
// ABOUTME: Gives the console something to browse without a running coordinator.

package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/store"
)

// Sizes maps a seed size to the number of events recorded per stream.
var Sizes = map[string]int{
	"small":  10,
	"medium": 60,
	"large":  300,
}

// Summary counts what Seed created.
type Summary struct {
	Resources int
	Secrets   int
	Files     int
	Streams   int
	Workers   int
	Events    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d resources, %d secrets, %d files, %d streams, %d workers, %d events",
		s.Resources, s.Secrets, s.Files, s.Streams, s.Workers, s.Events)
}

// Seed fills st with sample data. The store is expected to be empty.
func Seed(ctx context.Context, st *store.Store, gen *Generator, size string) (Summary, error) {
	perStream, ok := Sizes[size]
	if !ok {
		return Summary{}, fmt.Errorf("unknown seed size %q (use small, medium or large)", size)
	}
	var sum Summary

	var bufferID *int64
	for _, f := range staticResources {
		res, err := st.CreateResource(ctx, f.kind, f.req)
		if err != nil {
			return sum, fmt.Errorf("seed %s %q: %w", f.kind, f.req.Label, err)
		}
		if f.kind == api.KindBuffers && bufferID == nil {
			bufferID = &res.ID
		}
		sum.Resources++
	}

	for _, s := range staticSecrets {
		if err := st.CreateSecret(ctx, s); err != nil {
			return sum, fmt.Errorf("seed secret %q: %w", s.Key, err)
		}
		sum.Secrets++
	}

	for _, f := range staticFiles {
		if _, err := st.CreateFile(ctx, f); err != nil {
			return sum, fmt.Errorf("seed file %q: %w", f.Key, err)
		}
		sum.Files++
	}

	var streams []*api.Stream
	for i, req := range staticStreams {
		if i == 0 {
			req.BufferID = bufferID
		}
		s, err := st.CreateStream(ctx, req)
		if err != nil {
			return sum, fmt.Errorf("seed stream %q: %w", req.Name, err)
		}
		streams = append(streams, s)
		sum.Streams++
	}

	now := time.Now()
	for i, w := range staticWorkers {
		beat := now.Add(-time.Duration(i*45) * time.Second)
		w.LastHeartbeat = &beat
		if err := st.UpsertWorker(ctx, w); err != nil {
			return sum, fmt.Errorf("seed worker %q: %w", w.ID, err)
		}
		sum.Workers++
	}

	msgs := gen.Messages(ctx, perStream)
	for _, s := range streams {
		n, err := recordEvents(ctx, st, s, msgs, now)
		sum.Events += n
		if err != nil {
			return sum, err
		}
	}

	log.Printf("Seeded %s", sum)
	return sum, nil
}

// recordEvents traces each message through the stream: consumed by the input,
// then produced by the output, spread over the last hour.
func recordEvents(ctx context.Context, st *store.Store, s *api.Stream, msgs []Message, now time.Time) (int, error) {
	n := 0
	step := time.Hour / time.Duration(len(msgs)+1)
	for i, m := range msgs {
		at := now.Add(-time.Hour + time.Duration(i+1)*step)
		flow := fmt.Sprintf("%s-%04d", s.Name, i)
		events := []api.StreamEvent{
			{FlowID: flow, Section: "input", ComponentLabel: s.InputLabel, Type: "CONSUME", Content: m.Content(),
				Meta: map[string]any{"topic": m.Topic}, CreatedAt: at},
			{FlowID: flow, Section: "output", ComponentLabel: s.OutputLabel, Type: "PRODUCE", Content: m.Content(),
				CreatedAt: at.Add(150 * time.Millisecond)},
		}
		if i%7 == 6 {
			events[1].Type = "ERROR"
			events[1].Content = "connection refused"
		}
		for _, ev := range events {
			if _, err := st.RecordEvent(ctx, s.ID, ev); err != nil {
				return n, fmt.Errorf("seed events for %q: %w", s.Name, err)
			}
			n++
		}
	}
	return n, nil
}
