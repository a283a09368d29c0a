package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sanctuaryweb/site/internal/health"
	"github.com/sanctuaryweb/site/internal/httpmw"
	"github.com/sanctuaryweb/site/internal/log"
)

// RouteRegistrar attaches routes to the public router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	// OnPanic runs after a recovered panic is logged.
	OnPanic func()

	MetricsMW func(http.Handler) http.Handler
	// RateLimitMW applies to every request, WriteLimitMW only to
	// non-GET/HEAD requests.
	RateLimitMW  func(http.Handler) http.Handler
	WriteLimitMW func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions

	Health    health.Probe
	Readiness health.Probe

	// SessionMW (the consent provider) wraps Pages only, so asset and API
	// requests never set the visitor cookie.
	SessionMW func(http.Handler) http.Handler
	Pages     []RouteRegistrar
	APIs      []RouteRegistrar
	// Site is registered last and owns the 404 fallback.
	Site RouteRegistrar
}
