package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sanctuaryweb/site/internal/xerrors"
)

// Probe returns nil when healthy and the failure reason otherwise.
type Probe interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Probe.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed always passes, or always fails with reason.
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// All passes when every non-nil probe passes and returns the first failure.
func All(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DBPing fails when the database does not answer within timeout.
func DBPing(db Pinger, timeout time.Duration) CheckFunc {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return xerrors.Wrap(err, "database ping")
		}
		return nil
	}
}

// Heartbeat fails when last reports a time older than maxAge. A zero time
// means the worker has not run yet and passes for the first maxAge after
// the probe is built.
func Heartbeat(name string, last func() time.Time, maxAge time.Duration, now func() time.Time) CheckFunc {
	if now == nil {
		now = time.Now
	}
	started := now()
	return func(context.Context) error {
		t := last()
		if t.IsZero() {
			t = started
		}
		if age := now().Sub(t); age > maxAge {
			return xerrors.Newf("%s stalled: last run %s ago", name, age.Truncate(time.Second))
		}
		return nil
	}
}

// ShutdownGate fails readiness once Close is called.
type ShutdownGate struct {
	draining atomic.Bool
	reason   atomic.Value
}

func (g *ShutdownGate) Close(reason string) {
	g.reason.Store(reason)
	g.draining.Store(true)
}

func (g *ShutdownGate) Draining() bool { return g.draining.Load() }

func (g *ShutdownGate) Probe() CheckFunc {
	return func(context.Context) error {
		if !g.draining.Load() {
			return nil
		}
		r, _ := g.reason.Load().(string)
		if r == "" {
			r = "draining"
		}
		return xerrors.New(r)
	}
}
