package consent

import (
	"context"
	"sync"
)

// View is the read side of a visitor's consent state.
type View interface {
	Loaded() bool
	Granted(c Category) bool
}

// Session is one visitor's consent state. It starts unloaded with every
// category denied, becomes loaded exactly once, and only ever gains grants.
type Session struct {
	visitorID string

	mu     sync.RWMutex
	grants map[Category]bool
	loaded bool

	ready chan struct{}
	once  sync.Once
}

func NewSession(visitorID string) *Session {
	return &Session{
		visitorID: visitorID,
		grants:    make(map[Category]bool),
		ready:     make(chan struct{}),
	}
}

func (s *Session) VisitorID() string { return s.visitorID }

func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Ready is closed once the session has loaded.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Wait blocks until the session has loaded or ctx is done, and reports
// whether it loaded.
func (s *Session) Wait(ctx context.Context) bool {
	select {
	case <-s.ready:
		return true
	case <-ctx.Done():
		return s.Loaded()
	}
}

func (s *Session) Granted(c Category) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[c]
}

// Snapshot copies the state for every registered category.
func (s *Session) Snapshot() map[Category]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Category]bool, len(registry))
	for c := range registry {
		out[c] = s.grants[c]
	}
	return out
}

// Grant sets c to granted and reports whether that changed anything. No other
// category is read or written.
func (s *Session) Grant(c Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[c] {
		return false
	}
	s.grants[c] = true
	return true
}

// hydrate merges stored grants into the session and marks it loaded. Grants
// made before hydration are kept. Only the first call has any effect.
func (s *Session) hydrate(stored map[Category]bool) {
	s.once.Do(func() {
		s.mu.Lock()
		for c, ok := range stored {
			if ok {
				s.grants[c] = true
			}
		}
		s.loaded = true
		s.mu.Unlock()
		close(s.ready)
	})
}
