// ABOUTME: Dynamic option lists for dynamic_select fields, loaded from an external source.
// ABOUTME: A generation counter discards results that arrive after a newer load or after Close.

package editor

import (
	"context"
	"log"
	"sync"

	"github.com/2389/airtruct-console/internal/schema"
)

// OptionSource loads the selectable values for a data source.
type OptionSource interface {
	Options(ctx context.Context, source schema.DataSource) ([]string, error)
}

// OptionState is what a renderer shows for one data source.
type OptionState struct {
	Loading bool     `json:"loading"`
	Loaded  bool     `json:"loaded"`
	Options []string `json:"options"`
}

// OptionSet tracks option loads for one editor session.
type OptionSet struct {
	src    OptionSource
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	gen    map[schema.DataSource]uint64
	state  map[schema.DataSource]OptionState
	closed bool
}

// NewOptionSet creates an option set whose loads stop when ctx ends or Close is called.
func NewOptionSet(ctx context.Context, src OptionSource) *OptionSet {
	ctx, cancel := context.WithCancel(ctx)
	return &OptionSet{
		src:    src,
		ctx:    ctx,
		cancel: cancel,
		gen:    make(map[schema.DataSource]uint64),
		state:  make(map[schema.DataSource]OptionState),
	}
}

// State returns the current options for a data source.
func (s *OptionSet) State(source schema.DataSource) OptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[source]
}

// Fetch loads options for a data source and returns the resulting state.
// A failed load yields an empty list. If another Fetch for the same source
// started meanwhile, or the set was closed, this result is dropped.
func (s *OptionSet) Fetch(ctx context.Context, source schema.DataSource) OptionState {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return OptionState{Loaded: true, Options: []string{}}
	}
	s.gen[source]++
	gen := s.gen[source]
	st := s.state[source]
	st.Loading = true
	s.state[source] = st
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	var options []string
	var err error
	if s.src == nil {
		err = context.Canceled
	} else {
		options, err = s.src.Options(ctx, source)
	}
	if err != nil {
		log.Printf("Failed to load %s options: %v", source, err)
		options = []string{}
	}
	if options == nil {
		options = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen[source] != gen {
		return s.state[source]
	}
	st = OptionState{Loaded: true, Options: options}
	s.state[source] = st
	return st
}

// Close cancels in-flight loads and ignores their results.
func (s *OptionSet) Close() {
	s.mu.Lock()
	s.closed = true
	for k := range s.gen {
		s.gen[k]++
	}
	s.mu.Unlock()
	s.cancel()
}
