package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sanctuaryweb/site/internal/storage/sqlitedb"
)

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestFixed(t *testing.T) {
	if err := Fixed(true, "ignored").Check(t.Context()); err != nil {
		t.Fatalf("ok probe failed: %v", err)
	}
	if err := Fixed(false, "").Check(t.Context()); err == nil || err.Error() != "unhealthy" {
		t.Fatalf("err = %v, want unhealthy", err)
	}
}

func TestAll(t *testing.T) {
	calls := 0
	counting := CheckFunc(func(context.Context) error { calls++; return nil })

	if err := All(counting, nil, counting).Check(t.Context()); err != nil || calls != 2 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
	err := All(counting, Fixed(false, "db down"), Fixed(false, "second")).Check(t.Context())
	if err == nil || err.Error() != "db down" {
		t.Fatalf("err = %v, want first failure", err)
	}
	if err := All().Check(t.Context()); err != nil {
		t.Fatalf("empty All failed: %v", err)
	}
}

func TestDBPing(t *testing.T) {
	if err := DBPing(pingFunc(func(context.Context) error { return nil }), 0).Check(t.Context()); err != nil {
		t.Fatal(err)
	}

	slow := pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err := DBPing(slow, 10*time.Millisecond).Check(t.Context())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if !strings.Contains(err.Error(), "database ping") {
		t.Fatalf("err = %v, want wrapped", err)
	}
}

func TestDBPing_SQLite(t *testing.T) {
	db, err := sqlitedb.Open(t.Context(), t.TempDir()+"/health.db")
	if err != nil {
		t.Fatal(err)
	}
	if err := DBPing(db, time.Second).Check(t.Context()); err != nil {
		t.Fatalf("open db: %v", err)
	}
	_ = db.Close()
	if err := DBPing(db, time.Second).Check(t.Context()); err == nil {
		t.Fatal("closed db passed")
	}
}

func TestHeartbeat(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	var last time.Time
	p := Heartbeat("push dispatcher", func() time.Time { return last }, time.Minute, clock)

	if err := p.Check(t.Context()); err != nil {
		t.Fatalf("fresh worker failed: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := p.Check(t.Context()); err == nil {
		t.Fatal("worker that never ran passed after maxAge")
	}
	last = now.Add(-30 * time.Second)
	if err := p.Check(t.Context()); err != nil {
		t.Fatalf("recent run failed: %v", err)
	}
	last = now.Add(-90 * time.Second)
	err := p.Check(t.Context())
	if err == nil || !strings.Contains(err.Error(), "push dispatcher stalled") {
		t.Fatalf("err = %v", err)
	}
}

func TestShutdownGate(t *testing.T) {
	var g ShutdownGate
	if err := g.Probe().Check(t.Context()); err != nil || g.Draining() {
		t.Fatal("open gate failed")
	}
	g.Close("")
	if err := g.Probe().Check(t.Context()); err == nil || err.Error() != "draining" {
		t.Fatalf("err = %v", err)
	}

	var g2 ShutdownGate
	g2.Close("shutting down")
	if err := g2.Probe().Check(t.Context()); err == nil || err.Error() != "shutting down" {
		t.Fatalf("err = %v", err)
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name   string
		h      http.HandlerFunc
		status int
		body   string
	}{
		{"healthy", HealthzHandler(Fixed(true, "")), http.StatusOK, "ok\n"},
		{"nil probe", ReadyzHandler(nil), http.StatusOK, "ready\n"},
		{"not ready", ReadyzHandler(Fixed(false, "database ping: closed")), http.StatusServiceUnavailable, "database ping: closed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/ready", http.NoBody))
			if rec.Code != tt.status || rec.Body.String() != tt.body {
				t.Fatalf("got %d %q, want %d %q", rec.Code, rec.Body.String(), tt.status, tt.body)
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Fatal("health responses must not be cached")
			}
		})
	}
}
