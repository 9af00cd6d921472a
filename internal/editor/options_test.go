// ABOUTME: Tests for dynamic option loading, stale result handling, and session lifecycle.
// ABOUTME: Uses a controllable fake source to order concurrent loads deterministically.

package editor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389/airtruct-console/internal/schema"
)

type fakeSource struct {
	calls chan fakeCall
}

type fakeCall struct {
	ctx   context.Context
	reply chan []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(chan fakeCall)}
}

func (f *fakeSource) Options(ctx context.Context, _ schema.DataSource) ([]string, error) {
	reply := make(chan []string)
	f.calls <- fakeCall{ctx: ctx, reply: reply}
	select {
	case opts := <-reply:
		return opts, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type staticSource struct {
	opts []string
	err  error
}

func (s staticSource) Options(context.Context, schema.DataSource) ([]string, error) {
	return s.opts, s.err
}

func TestOptionSet_Fetch(t *testing.T) {
	set := NewOptionSet(context.Background(), staticSource{opts: []string{"redis", "memory"}})
	defer set.Close()

	st := set.Fetch(context.Background(), schema.SourceCaches)
	if !st.Loaded || st.Loading || !reflect.DeepEqual(st.Options, []string{"redis", "memory"}) {
		t.Errorf("Fetch() = %+v", st)
	}
	if got := set.State(schema.SourceCaches); !reflect.DeepEqual(got, st) {
		t.Errorf("State() = %+v", got)
	}
	if got := set.State(schema.SourceSecrets); got.Loaded {
		t.Errorf("unfetched source = %+v", got)
	}
}

func TestOptionSet_FailureYieldsEmpty(t *testing.T) {
	set := NewOptionSet(context.Background(), staticSource{err: errors.New("connection refused")})
	defer set.Close()

	st := set.Fetch(context.Background(), schema.SourceSecrets)
	if !st.Loaded || st.Options == nil || len(st.Options) != 0 {
		t.Errorf("Fetch() = %+v, want loaded with no options", st)
	}
}

func TestOptionSet_StaleResultDiscarded(t *testing.T) {
	src := newFakeSource()
	set := NewOptionSet(context.Background(), src)
	defer set.Close()

	first := make(chan OptionState)
	go func() { first <- set.Fetch(context.Background(), schema.SourceCaches) }()
	slow := <-src.calls
	if !set.State(schema.SourceCaches).Loading {
		t.Error("state not loading while a fetch is in flight")
	}

	second := make(chan OptionState)
	go func() { second <- set.Fetch(context.Background(), schema.SourceCaches) }()
	fast := <-src.calls
	fast.reply <- []string{"new"}
	if got := <-second; !reflect.DeepEqual(got.Options, []string{"new"}) {
		t.Errorf("second Fetch() = %+v", got)
	}

	slow.reply <- []string{"old"}
	<-first
	if got := set.State(schema.SourceCaches); !reflect.DeepEqual(got.Options, []string{"new"}) {
		t.Errorf("stale result applied: %+v", got)
	}
}

func TestOptionSet_CloseCancelsInFlight(t *testing.T) {
	src := newFakeSource()
	set := NewOptionSet(context.Background(), src)

	done := make(chan OptionState)
	go func() { done <- set.Fetch(context.Background(), schema.SourceSecrets) }()
	call := <-src.calls

	set.Close()
	select {
	case <-call.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Close() did not cancel the in-flight load")
	}
	<-done
	if got := set.State(schema.SourceSecrets); got.Loaded {
		t.Errorf("result applied after Close(): %+v", got)
	}
	if got := set.Fetch(context.Background(), schema.SourceSecrets); len(got.Options) != 0 {
		t.Errorf("Fetch() after Close() = %+v", got)
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	sessions := NewSessions(time.Minute)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sessions.now = func() time.Time { return now }

	ed, _ := open(t, schema.SectionCache, "memory", "")
	set := NewOptionSet(context.Background(), staticSource{})
	sess := sessions.Create("cache", ed, set)
	idle := sessions.Create("cache", ed, nil)

	if sess.ID == "" || sess.ID == idle.ID {
		t.Fatalf("session ids = %q, %q", sess.ID, idle.ID)
	}
	if sessions.Len() != 2 {
		t.Errorf("Len() = %d", sessions.Len())
	}

	now = now.Add(45 * time.Second)
	if _, ok := sessions.Get(sess.ID); !ok {
		t.Fatal("Get() lost a live session")
	}
	now = now.Add(30 * time.Second)
	if n := sessions.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if _, ok := sessions.Get(idle.ID); ok {
		t.Error("idle session survived Sweep()")
	}

	var seen *Editor
	if err := sess.Do(func(e *Editor) error {
		seen = e
		return nil
	}); err != nil || seen != ed {
		t.Errorf("Do() = %v, editor %p", err, seen)
	}

	if !sessions.Close(sess.ID) || sessions.Close(sess.ID) {
		t.Error("Close() should succeed exactly once")
	}
	if got := set.Fetch(context.Background(), schema.SourceCaches); got.Loaded && len(got.Options) != 0 {
		t.Errorf("option set still live after Close(): %+v", got)
	}
}

func TestSessions_ConcurrentUse(t *testing.T) {
	sessions := NewSessions(time.Hour)
	cs := component(t, schema.SectionCache, "memory")

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ed := New(cs, "", Options{})
			sess := sessions.Create("cache", ed, nil)
			ttl := fmt.Sprintf("%dm", id+1)
			for j := 0; j < 20; j++ {
				got, ok := sessions.Get(sess.ID)
				if !ok {
					errs <- fmt.Errorf("session %d vanished", id)
					return
				}
				err := got.Do(func(e *Editor) error {
					if err := e.SetEnabled(ParsePath("default_ttl"), true); err != nil {
						return err
					}
					return e.SetValue(ParsePath("default_ttl"), ttl)
				})
				if err != nil {
					errs <- err
					return
				}
				sessions.Sweep()
				sessions.Len()
			}
			sess.Do(func(e *Editor) error {
				if !strings.Contains(e.Text(), "default_ttl: "+ttl) {
					errs <- fmt.Errorf("session %d text = %q", id, e.Text())
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if n := sessions.Len(); n != workers {
		t.Errorf("Len() = %d, want %d", n, workers)
	}
}
