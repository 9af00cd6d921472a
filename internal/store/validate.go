// ABOUTME: Local stand-ins for the coordinator's validate and try endpoints.
// ABOUTME: Validation checks each node's config against the component catalog.

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/schema"
)

// ErrTryUnavailable is the message returned by TryStream in local mode.
const ErrTryUnavailable = "try is not available in local mode"

// ValidateStream checks a stream definition without saving it.
func (s *Store) ValidateStream(ctx context.Context, req api.StreamRequest) (*api.ValidateResult, error) {
	var problems []string
	check := func(node string, section schema.Section, component, config string) {
		if component == "" {
			problems = append(problems, node+": no component selected")
			return
		}
		if s.registry == nil {
			return
		}
		c, ok := s.registry.Component(section, component)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown component %q", node, component))
			return
		}
		for _, p := range s.registry.ValidateConfig(c, config) {
			problems = append(problems, node+": "+p.String())
		}
	}

	if strings.TrimSpace(req.Name) == "" {
		problems = append(problems, "name is required")
	}
	check("input", schema.SectionInput, req.InputComponent, req.InputConfig)
	for i, p := range req.Processors {
		node := fmt.Sprintf("processor %d", i+1)
		if p.Label != "" {
			node = fmt.Sprintf("processor %q", p.Label)
		}
		check(node, schema.SectionPipeline, p.Component, p.Config)
	}
	check("output", schema.SectionOutput, req.OutputComponent, req.OutputConfig)

	if req.BufferID != nil {
		if _, err := s.GetResource(ctx, api.KindBuffers, *req.BufferID); err != nil {
			problems = append(problems, fmt.Sprintf("buffer %d does not exist", *req.BufferID))
		}
	}

	if len(problems) > 0 {
		return &api.ValidateResult{Valid: false, Error: strings.Join(problems, "\n")}, nil
	}
	return &api.ValidateResult{Valid: true}, nil
}

// TryStream cannot run pipelines locally; it reports that as a result, not a failure.
func (s *Store) TryStream(ctx context.Context, req api.TryRequest) (*api.TryResult, error) {
	if len(req.Messages) == 0 {
		return &api.TryResult{Outputs: []api.TryOutput{}, Error: "at least one test message is required"}, nil
	}
	return &api.TryResult{Outputs: []api.TryOutput{}, Error: ErrTryUnavailable}, nil
}

var _ api.Backend = (*Store)(nil)
