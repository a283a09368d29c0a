package consent

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanctuaryweb/site/internal/log"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

var ErrInvalidOptions = errors.New("invalid consent options")

const (
	defaultCookieName     = "sanctuary_visitor"
	defaultCookieMaxAge   = 365 * 24 * time.Hour
	defaultHydrateTimeout = 250 * time.Millisecond
	defaultStoreTimeout   = 5 * time.Second
)

// Recorder receives consent events, typically for metrics.
type Recorder interface {
	ObserveDecision(c Category, d Decision)
	ObserveGrant(c Category, changed bool)
	ObserveHydration(elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDecision(Category, Decision)    {}
func (nopRecorder) ObserveGrant(Category, bool)           {}
func (nopRecorder) ObserveHydration(time.Duration, error) {}

type Options struct {
	Store  Store
	Logger log.Logger
	// Recorder is optional.
	Recorder Recorder

	CookieName   string
	CookieMaxAge time.Duration
	CookieSecure bool

	// HydrateTimeout bounds how long a page render waits for stored grants
	// before falling back to the placeholder.
	HydrateTimeout time.Duration
	// StoreTimeout bounds a single background Load.
	StoreTimeout time.Duration

	// Now is used for grant timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Provider owns visitor identity, session hydration and grant persistence.
type Provider struct {
	store  Store
	logger log.Logger
	rec    Recorder

	cookieName     string
	cookieMaxAge   time.Duration
	cookieSecure   bool
	hydrateTimeout time.Duration
	storeTimeout   time.Duration
	now            func() time.Time

	// hydrations tracks background loads so shutdown can wait for them.
	hydrations sync.WaitGroup
}

func NewProvider(opts Options) (*Provider, error) {
	if opts.Store == nil {
		return nil, xerrors.Wrap(ErrInvalidOptions, "store is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if strings.TrimSpace(opts.CookieName) == "" {
		opts.CookieName = defaultCookieName
	}
	if opts.CookieMaxAge <= 0 {
		opts.CookieMaxAge = defaultCookieMaxAge
	}
	if opts.HydrateTimeout <= 0 {
		opts.HydrateTimeout = defaultHydrateTimeout
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		store:          opts.Store,
		logger:         opts.Logger,
		rec:            opts.Recorder,
		cookieName:     opts.CookieName,
		cookieMaxAge:   opts.CookieMaxAge,
		cookieSecure:   opts.CookieSecure,
		hydrateTimeout: opts.HydrateTimeout,
		storeTimeout:   opts.StoreTimeout,
		now:            opts.Now,
	}, nil
}

// Middleware attaches a Session for the visitor to the request context and
// starts loading their stored grants in the background. Visitors without a
// valid cookie get a fresh id and a session that is loaded immediately.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, fresh := p.visitorID(r)
		s := NewSession(id)
		if fresh {
			http.SetCookie(w, p.cookie(id))
			s.hydrate(nil)
		} else {
			p.hydrations.Add(1)
			go p.hydrate(context.WithoutCancel(ctx), s)
		}

		// rendered output depends on both
		w.Header().Add("Vary", "Cookie")
		w.Header().Add("Vary", "User-Agent")

		st := &requestState{
			view:       s,
			session:    s,
			userAgent:  r.UserAgent(),
			returnPath: r.URL.RequestURI(),
			rec:        p.rec,
			await:      func(ctx context.Context) { p.Await(ctx, s) },
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, stateKey{}, st)))
	})
}

// Await waits up to the hydrate timeout for s to load and reports whether
// it did.
func (p *Provider) Await(ctx context.Context, s *Session) bool {
	if s.Loaded() {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, p.hydrateTimeout)
	defer cancel()
	return s.Wait(ctx)
}

// Grant marks c granted on the session and persists it. The session keeps
// the grant even when persisting fails.
func (p *Provider) Grant(ctx context.Context, s *Session, c Category) error {
	if _, ok := registry[c]; !ok {
		return xerrors.Wrapf(ErrUnknownCategory, "%q", string(c))
	}
	changed := s.Grant(c)
	p.rec.ObserveGrant(c, changed)
	if err := p.store.Grant(ctx, s.VisitorID(), c, p.now()); err != nil {
		return xerrors.Wrap(err, "persist consent grant")
	}
	return nil
}

// Drain waits for in-flight background loads, or until ctx is done.
func (p *Provider) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.hydrations.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) hydrate(ctx context.Context, s *Session) {
	defer p.hydrations.Done()

	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	start := time.Now()
	grants, err := p.store.Load(ctx, s.VisitorID())
	p.rec.ObserveHydration(time.Since(start), err)
	if err != nil {
		// session stays unloaded; gates keep showing the placeholder
		p.logger.Error(ctx, err, "consent hydration failed", "visitor_id", s.VisitorID())
		return
	}
	s.hydrate(grants)
}

func (p *Provider) visitorID(r *http.Request) (id string, fresh bool) {
	if c, err := r.Cookie(p.cookieName); err == nil {
		if u, err := uuid.Parse(c.Value); err == nil {
			return u.String(), false
		}
	}
	return uuid.NewString(), true
}

func (p *Provider) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     p.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(p.cookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   p.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

type stateKey struct{}

type requestState struct {
	view       View
	session    *Session
	userAgent  string
	returnPath string
	rec        Recorder

	await     func(context.Context)
	awaitOnce sync.Once
}

// wait runs the hydration wait at most once per request, however many gates
// the page renders.
func (st *requestState) wait(ctx context.Context) {
	if st.await == nil {
		return
	}
	st.awaitOnce.Do(func() { st.await(ctx) })
}

// SessionFromContext returns the session attached by Middleware, or nil.
func SessionFromContext(ctx context.Context) *Session {
	if st, ok := ctx.Value(stateKey{}).(*requestState); ok {
		return st.session
	}
	return nil
}

// RequestInfo is what a Gate needs to know about the current request.
type RequestInfo struct {
	View       View
	UserAgent  string
	ReturnPath string
	Recorder   Recorder
}

// WithRequest attaches info for Gate rendering outside Middleware, for
// example in tests or offline rendering.
func WithRequest(ctx context.Context, info RequestInfo) context.Context {
	rec := info.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	st := &requestState{
		view:       info.View,
		userAgent:  info.UserAgent,
		returnPath: info.ReturnPath,
		rec:        rec,
	}
	if s, ok := info.View.(*Session); ok {
		st.session = s
	}
	return context.WithValue(ctx, stateKey{}, st)
}

func stateFromContext(ctx context.Context) *requestState {
	st, _ := ctx.Value(stateKey{}).(*requestState)
	return st
}
