package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sanctuaryweb/site/internal/httpmw"
)

const (
	DefaultPerSecond   = 10
	DefaultBurst       = 30
	DefaultTTL         = 5 * time.Minute
	DefaultMaxVisitors = 100_000
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// warned is set on the first denial and cleared when the bucket is
	// evicted, so each offender is logged once per visit.
	warned bool
}

type Options struct {
	// Name labels denial metrics, e.g. "pages" or "writes".
	Name      string
	PerSecond float64
	Burst     int
	// TTL is how long an idle client keeps its bucket.
	TTL time.Duration
	// MaxVisitors caps tracked clients. New clients past the cap are denied
	// until eviction frees room. Negative disables the cap.
	MaxVisitors int
	// RetryAfter is sent with 429 responses.
	RetryAfter time.Duration

	// OnFirstDenied runs once per bucket lifetime, OnDenied on every
	// denial. Both run without the limiter lock held.
	OnFirstDenied func(ip string)
	OnDenied      func(ip string)

	Now func() time.Time
}

// Limiter holds one token bucket per client address.
type Limiter struct {
	name        string
	perSecond   rate.Limit
	burst       int
	ttl         time.Duration
	maxVisitors int
	retryAfter  string
	onFirst     func(string)
	onDenied    func(string)
	now         func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New builds a Limiter and starts eviction, which stops with ctx.
func New(ctx context.Context, opts Options) *Limiter {
	if opts.PerSecond <= 0 {
		opts.PerSecond = DefaultPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultBurst
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxVisitors == 0 {
		opts.MaxVisitors = DefaultMaxVisitors
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Limiter{
		name:        opts.Name,
		perSecond:   rate.Limit(opts.PerSecond),
		burst:       opts.Burst,
		ttl:         opts.TTL,
		maxVisitors: opts.MaxVisitors,
		retryAfter:  strconv.Itoa(int(opts.RetryAfter.Seconds())),
		onFirst:     opts.OnFirstDenied,
		onDenied:    opts.OnDenied,
		now:         opts.Now,
		buckets:     make(map[string]*bucket),
	}
	go l.evictLoop(ctx)
	return l
}

func (l *Limiter) Name() string { return l.name }

// Allow takes a token for ip.
func (l *Limiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		if l.maxVisitors > 0 && len(l.buckets) >= l.maxVisitors {
			l.mu.Unlock()
			l.denied(ip, false)
			return false
		}
		b = &bucket{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	first := false
	if !allowed && !b.warned {
		b.warned = true
		first = true
	}
	l.mu.Unlock()

	if !allowed {
		l.denied(ip, first)
	}
	return allowed
}

func (l *Limiter) denied(ip string, first bool) {
	if first && l.onFirst != nil {
		l.onFirst(ip)
	}
	if l.onDenied != nil {
		l.onDenied(ip)
	}
}

// Len reports the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(l.now())
		}
	}
}

// evict drops buckets idle for longer than the TTL.
func (l *Limiter) evict(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, ip)
			n++
		}
	}
	return n
}

// Middleware answers 429 once the client's bucket is empty. The client
// address comes from httpmw.ClientIP, which must run first.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(httpmw.ClientIPFromContext(r.Context())) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", l.retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
