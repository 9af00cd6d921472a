// ABOUTME: Live editor sessions for the web console, keyed by UUID with idle expiry.
// ABOUTME: Each session serializes access to its editor; closing it cancels option loads.

package editor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one open editor.
type Session struct {
	ID      string
	Section string
	Options *OptionSet

	mu       sync.Mutex
	editor   *Editor
	lastUsed time.Time
}

// Do runs fn with exclusive access to the session's editor.
func (s *Session) Do(fn func(*Editor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.editor)
}

// Sessions is a concurrency-safe set of live sessions.
type Sessions struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]*Session
}

// NewSessions creates a session store. Sessions idle longer than ttl are removed by Sweep.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, now: time.Now, items: make(map[string]*Session)}
}

// Create registers an editor and returns its session.
func (s *Sessions) Create(section string, ed *Editor, options *OptionSet) *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		Section:  section,
		Options:  options,
		editor:   ed,
		lastUsed: s.now(),
	}
	s.mu.Lock()
	s.items[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a live session and marks it used.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess, true
}

// Close removes a session and cancels its option loads.
func (s *Sessions) Close(id string) bool {
	s.mu.Lock()
	sess, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if ok && sess.Options != nil {
		sess.Options.Close()
	}
	return ok
}

// Sweep closes sessions idle longer than the TTL and returns how many it closed.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	var expired []*Session
	s.mu.Lock()
	for id, sess := range s.items {
		if sess.lastUsed.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range expired {
		if sess.Options != nil {
			sess.Options.Close()
		}
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
