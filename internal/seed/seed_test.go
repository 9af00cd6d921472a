// ABOUTME: Tests for seeding the local store.
// ABOUTME: Uses the static generator so no network access is needed.

package seed

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/schema"
	"github.com/2389/airtruct-console/internal/store"
)

func TestSeed(t *testing.T) {
	reg := schema.MustBuiltin()
	st, err := store.New(":memory:", reg)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	sum, err := Seed(ctx, st, Static(), "small")
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if sum.Streams != len(staticStreams) || sum.Workers != len(staticWorkers) {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Events != len(staticStreams)*Sizes["small"]*2 {
		t.Errorf("events = %d", sum.Events)
	}

	streams, err := st.ListStreams(ctx)
	if err != nil || len(streams) != len(staticStreams) {
		t.Fatalf("ListStreams() = %d, %v", len(streams), err)
	}
	page, err := st.StreamEvents(ctx, streams[0].ID, api.EventQuery{Limit: 5})
	if err != nil || page.Total != Sizes["small"]*2 {
		t.Errorf("StreamEvents() total = %v, %v", page, err)
	}
}

func TestSeed_ConfigsAreValid(t *testing.T) {
	reg := schema.MustBuiltin()
	for _, f := range staticResources {
		section := f.kind.Section()
		if section == "" {
			section = f.req.Section
		}
		cs, ok := reg.Component(section, f.req.Component)
		if !ok {
			t.Errorf("%s %q: component %q not in catalog", f.kind, f.req.Label, f.req.Component)
			continue
		}
		if problems := reg.ValidateConfig(cs, f.req.Config); len(problems) > 0 {
			t.Errorf("%s %q: %v", f.kind, f.req.Label, problems)
		}
	}
	for _, s := range staticStreams {
		if _, ok := reg.Component(schema.SectionInput, s.InputComponent); !ok {
			t.Errorf("stream %q input %q not in catalog", s.Name, s.InputComponent)
		}
		if _, ok := reg.Component(schema.SectionOutput, s.OutputComponent); !ok {
			t.Errorf("stream %q output %q not in catalog", s.Name, s.OutputComponent)
		}
	}
}

func TestSeed_UnknownSize(t *testing.T) {
	if _, err := Seed(context.Background(), nil, Static(), "huge"); err == nil {
		t.Error("expected an error for an unknown size")
	}
}

func TestStaticMessages(t *testing.T) {
	msgs := Static().Messages(context.Background(), len(staticPayloads)+3)
	if len(msgs) != len(staticPayloads)+3 {
		t.Fatalf("got %d messages", len(msgs))
	}
	for _, m := range msgs {
		if !json.Valid(m.Payload) {
			t.Errorf("payload is not JSON: %s", m.Payload)
		}
	}
	if got := Static().Messages(context.Background(), 0); got != nil {
		t.Errorf("Messages(0) = %v", got)
	}
}
