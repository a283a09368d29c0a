package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sanctuaryweb/site/internal/httpmw"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(t *testing.T, opts Options) (*Limiter, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts.Now = c.now
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, opts), c
}

func TestAllow_BurstThenRefill(t *testing.T) {
	l, c := newTestLimiter(t, Options{PerSecond: 1, Burst: 3})

	for i := range 3 {
		if !l.Allow("198.51.100.1") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if l.Allow("198.51.100.1") {
		t.Fatal("request past burst allowed")
	}
	if !l.Allow("198.51.100.2") {
		t.Fatal("other client shares the bucket")
	}

	c.advance(time.Second)
	if !l.Allow("198.51.100.1") {
		t.Fatal("no token after refill")
	}
}

func TestAllow_DenialHooks(t *testing.T) {
	var first, all []string
	l, _ := newTestLimiter(t, Options{
		PerSecond:     1,
		Burst:         1,
		OnFirstDenied: func(ip string) { first = append(first, ip) },
		OnDenied:      func(ip string) { all = append(all, ip) },
	})

	for range 4 {
		l.Allow("a")
	}
	l.Allow("b")
	l.Allow("b")

	if len(first) != 2 || first[0] != "a" || first[1] != "b" {
		t.Fatalf("first denials = %v", first)
	}
	if len(all) != 4 {
		t.Fatalf("denials = %d, want 4", len(all))
	}
}

func TestEvict(t *testing.T) {
	var first int
	l, c := newTestLimiter(t, Options{
		PerSecond:     1,
		Burst:         1,
		TTL:           time.Minute,
		OnFirstDenied: func(string) { first++ },
	})

	l.Allow("idle")
	l.Allow("idle")
	c.advance(30 * time.Second)
	l.Allow("active")

	c.advance(45 * time.Second)
	if n := l.evict(c.now()); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}

	// A fresh bucket logs its first denial again.
	l.Allow("idle")
	l.Allow("idle")
	if first != 2 {
		t.Fatalf("first-denial hook ran %d times, want 2", first)
	}
}

func TestMaxVisitors(t *testing.T) {
	var denied int
	l, _ := newTestLimiter(t, Options{MaxVisitors: 2, OnDenied: func(string) { denied++ }})

	if !l.Allow("a") || !l.Allow("b") {
		t.Fatal("clients under the cap denied")
	}
	if l.Allow("c") {
		t.Fatal("new client past the cap allowed")
	}
	if !l.Allow("a") {
		t.Fatal("known client denied at capacity")
	}
	if denied != 1 || l.Len() != 2 {
		t.Fatalf("denied=%d len=%d", denied, l.Len())
	}
}

func TestNew_Defaults(t *testing.T) {
	l := New(t.Context(), Options{Name: "pages"})
	if l.perSecond != DefaultPerSecond || l.burst != DefaultBurst || l.ttl != DefaultTTL || l.maxVisitors != DefaultMaxVisitors {
		t.Fatalf("defaults not applied: %+v", l)
	}
	if l.retryAfter != "30" || l.Name() != "pages" {
		t.Fatalf("retryAfter=%q name=%q", l.retryAfter, l.Name())
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(t, Options{PerSecond: 1, Burst: 1, RetryAfter: 5 * time.Second})
	calls := 0
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/consent", http.NoBody)
		req = req.WithContext(httpmw.WithClientIP(req.Context(), ip))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("203.0.113.1"); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := send("203.0.113.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "5" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	if rec := send("203.0.113.2"); rec.Code != http.StatusOK {
		t.Fatal("second client throttled")
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, Options{PerSecond: 1, Burst: 50})
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("same") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Fatalf("allowed = %d, want 50", allowed)
	}
}
