package consent

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a-h/templ"
)

const (
	browserUA = "Mozilla/5.0"
	googleUA  = "Mozilla/5.0 (compatible; GoogleBot/2.1; +http://www.google.com/bot.html)"
)

// staticView is a fixed consent state.
type staticView struct {
	loaded bool
	grants map[Category]bool
}

func (v staticView) Loaded() bool            { return v.loaded }
func (v staticView) Granted(c Category) bool { return v.grants[c] }

const childMarker = `<iframe id="gated-child"></iframe>`

var child = templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, childMarker)
	return err
})

func renderGate(t *testing.T, info RequestInfo, p Props) string {
	t.Helper()
	var b strings.Builder
	if err := Gate(p, child).Render(WithRequest(context.Background(), info), &b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return b.String()
}

type decisionEvent struct {
	c Category
	d Decision
}

type spyRecorder struct {
	mu         sync.Mutex
	decisions  []decisionEvent
	grants     map[Category]int
	hydrations int
	hydrateErr error
}

func (s *spyRecorder) ObserveDecision(c Category, d Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, decisionEvent{c, d})
}

func (s *spyRecorder) ObserveGrant(c Category, _ bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants == nil {
		s.grants = map[Category]int{}
	}
	s.grants[c]++
}

func (s *spyRecorder) ObserveHydration(_ time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrations++
	if err != nil {
		s.hydrateErr = err
	}
}

func (s *spyRecorder) snapshot() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrations, s.hydrateErr
}

var errStoreDown = errors.New("store down")

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Load(context.Context, string) (map[Category]bool, error) {
	return nil, errStoreDown
}

func (failingStore) Grant(context.Context, string, Category, time.Time) error {
	return errStoreDown
}

// gatedStore blocks Load until release is closed.
type gatedStore struct {
	*MemoryStore
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
}

func (g *gatedStore) Load(ctx context.Context, visitorID string) (map[Category]bool, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.MemoryStore.Load(ctx, visitorID)
}
