package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sanctuaryweb/site/internal/log"
)

// EnvPrefix is prepended to every env tag, "LOG_LEVEL" is read from SANCTUARY_LOG_LEVEL.
const EnvPrefix = "SANCTUARY_"

type App struct {
	LogJSON           bool    `env:"LOG_JSON" envDefault:"true"`
	LogLevel          string  `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort          int     `env:"HTTP_PORT" envDefault:"8080"`
	AdminPort         int     `env:"ADMIN_PORT" envDefault:"9000"`
	EnablePprof       bool    `env:"ENABLE_PPROF" envDefault:"true"`
	EnablePyroscope   bool    `env:"ENABLE_PYROSCOPE" envDefault:"false"`
	EnableTracing     bool    `env:"ENABLE_TRACING" envDefault:"false"`
	PyroServer        string  `env:"PYRO_SERVER"`
	PyroTenantID      string  `env:"PYRO_TENANT"`
	OTLPEndpoint      string  `env:"OTLP_ENDPOINT"`
	TraceSample       float64 `env:"TRACE_SAMPLE" envDefault:"0"`
	StacktraceLevel   string  `env:"STACKTRACE_LEVEL" envDefault:"error"`
	IncludeErrorLinks bool    `env:"INCLUDE_ERROR_LINKS" envDefault:"true"`
	MaxErrorLinks     int     `env:"MAX_ERROR_LINKS" envDefault:"5"`
	TrustedProxyHops  int     `env:"TRUSTED_PROXY_HOPS" envDefault:"0"`

	// DrainDelay is how long readiness fails before the listeners stop, so
	// load balancers stop routing first.
	DrainDelay time.Duration `env:"DRAIN_DELAY" envDefault:"15s"`

	// Per-client rate limits. Writes cover POST /consent and push
	// subscriptions.
	RateLimitPerSecond      float64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"10"`
	RateLimitBurst          int     `env:"RATE_LIMIT_BURST" envDefault:"30"`
	WriteRateLimitPerSecond float64 `env:"WRITE_RATE_LIMIT_PER_SECOND" envDefault:"0.5"`
	WriteRateLimitBurst     int     `env:"WRITE_RATE_LIMIT_BURST" envDefault:"5"`

	// Storage
	DatabasePath string `env:"DATABASE_PATH" envDefault:"sanctuary.db"`

	// Consent
	ConsentCookieName     string        `env:"CONSENT_COOKIE_NAME" envDefault:"sanctuary_visitor"`
	ConsentCookieMaxAge   time.Duration `env:"CONSENT_COOKIE_MAX_AGE" envDefault:"8760h"`
	ConsentCookieSecure   bool          `env:"CONSENT_COOKIE_SECURE" envDefault:"true"`
	ConsentHydrateTimeout time.Duration `env:"CONSENT_HYDRATE_TIMEOUT" envDefault:"250ms"`

	// Public site
	SiteURL       string `env:"SITE_URL" envDefault:"http://localhost:8080"`
	TwitchChannel string `env:"TWITCH_CHANNEL" envDefault:"sanctuary"`

	// Push notification dispatch
	EnablePushDispatch bool          `env:"ENABLE_PUSH_DISPATCH" envDefault:"false"`
	PushPollInterval   time.Duration `env:"PUSH_POLL_INTERVAL" envDefault:"15s"`
	PushBatchSize      int           `env:"PUSH_BATCH_SIZE" envDefault:"50"`
	PushRatePerSecond  float64       `env:"PUSH_RATE_PER_SECOND" envDefault:"5"`
	PushMaxAttempts    int           `env:"PUSH_MAX_ATTEMPTS" envDefault:"5"`
}

// Load reads env vars into c (defaults from envDefault tags), then registers
// flags on fs using those values as defaults and parses args.
// Precedence: cli flag > env var > default.
func Load(fs *flag.FlagSet, args []string) (App, error) {
	var c App
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	Register(fs, &c)
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	return c, nil
}

// Register binds config fields to fs, taking the current field values as flag
// defaults.
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", c.LogJSON, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", c.HTTPPort, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", c.AdminPort, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", c.EnablePprof, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", c.EnableTracing, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", c.EnablePyroscope, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", c.PyroServer, "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", c.PyroTenantID, "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", c.OTLPEndpoint, "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", c.TraceSample, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", c.StacktraceLevel, "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", c.IncludeErrorLinks, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", c.MaxErrorLinks, "max error chain depth (1..64)")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", c.TrustedProxyHops, "number of trusted reverse proxies in front of the server")
	fs.DurationVar(&c.DrainDelay, "drain-delay", c.DrainDelay, "time between failing readiness and stopping listeners on shutdown")
	fs.Float64Var(&c.RateLimitPerSecond, "rate-limit-per-second", c.RateLimitPerSecond, "sustained requests per second per client")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", c.RateLimitBurst, "request burst per client")
	fs.Float64Var(&c.WriteRateLimitPerSecond, "write-rate-limit-per-second", c.WriteRateLimitPerSecond, "sustained consent/subscription writes per second per client")
	fs.IntVar(&c.WriteRateLimitBurst, "write-rate-limit-burst", c.WriteRateLimitBurst, "write burst per client")
	fs.StringVar(&c.DatabasePath, "database-path", c.DatabasePath, "sqlite database file for consent grants and notifications")
	fs.StringVar(&c.ConsentCookieName, "consent-cookie-name", c.ConsentCookieName, "cookie carrying the anonymous visitor id")
	fs.DurationVar(&c.ConsentCookieMaxAge, "consent-cookie-max-age", c.ConsentCookieMaxAge, "visitor cookie lifetime")
	fs.BoolVar(&c.ConsentCookieSecure, "consent-cookie-secure", c.ConsentCookieSecure, "set Secure on the visitor cookie")
	fs.DurationVar(&c.ConsentHydrateTimeout, "consent-hydrate-timeout", c.ConsentHydrateTimeout, "how long a page waits for stored consent before rendering placeholders")
	fs.StringVar(&c.SiteURL, "site-url", c.SiteURL, "public base URL used for share links")
	fs.StringVar(&c.TwitchChannel, "twitch-channel", c.TwitchChannel, "Twitch channel embedded on the home page (empty disables)")
	fs.BoolVar(&c.EnablePushDispatch, "enable-push-dispatch", c.EnablePushDispatch, "Enable delivering pending notification pushes")
	fs.DurationVar(&c.PushPollInterval, "push-poll-interval", c.PushPollInterval, "how often to look for pending pushes")
	fs.IntVar(&c.PushBatchSize, "push-batch-size", c.PushBatchSize, "max pushes delivered per poll (1..1000)")
	fs.Float64Var(&c.PushRatePerSecond, "push-rate-per-second", c.PushRatePerSecond, "max push deliveries per second")
	fs.IntVar(&c.PushMaxAttempts, "push-max-attempts", c.PushMaxAttempts, "delivery attempts before a push is given up (1..100)")
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}
	if c.TrustedProxyHops < 0 || c.TrustedProxyHops > 8 {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXY_HOPS must be 0..8 (got %d)", c.TrustedProxyHops))
	}

	if c.DrainDelay < 0 || c.DrainDelay > 5*time.Minute {
		errs = append(errs, fmt.Errorf("DRAIN_DELAY must be 0..5m (got %s)", c.DrainDelay))
	}

	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_SECOND must be > 0 and RATE_LIMIT_BURST >= 1 (got %.2f, %d)", c.RateLimitPerSecond, c.RateLimitBurst))
	}
	if c.WriteRateLimitPerSecond <= 0 || c.WriteRateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("WRITE_RATE_LIMIT_PER_SECOND must be > 0 and WRITE_RATE_LIMIT_BURST >= 1 (got %.2f, %d)", c.WriteRateLimitPerSecond, c.WriteRateLimitBurst))
	}

	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, fmt.Errorf("DATABASE_PATH is required"))
	}

	if !validCookieName(c.ConsentCookieName) {
		errs = append(errs, fmt.Errorf("CONSENT_COOKIE_NAME %q is not a valid cookie name", c.ConsentCookieName))
	}
	if c.ConsentCookieMaxAge < time.Hour {
		errs = append(errs, fmt.Errorf("CONSENT_COOKIE_MAX_AGE must be at least 1h (got %s)", c.ConsentCookieMaxAge))
	}
	if c.ConsentHydrateTimeout <= 0 || c.ConsentHydrateTimeout > 5*time.Second {
		errs = append(errs, fmt.Errorf("CONSENT_HYDRATE_TIMEOUT must be in (0, 5s] (got %s)", c.ConsentHydrateTimeout))
	}

	if u, err := url.Parse(c.SiteURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("SITE_URL must be an http(s) URL (got %q)", c.SiteURL))
	}

	if c.EnablePushDispatch {
		if c.PushPollInterval < time.Second {
			errs = append(errs, fmt.Errorf("PUSH_POLL_INTERVAL must be at least 1s (got %s)", c.PushPollInterval))
		}
		if c.PushBatchSize < 1 || c.PushBatchSize > 1000 {
			errs = append(errs, fmt.Errorf("PUSH_BATCH_SIZE must be 1..1000 (got %d)", c.PushBatchSize))
		}
		if c.PushRatePerSecond <= 0 {
			errs = append(errs, fmt.Errorf("PUSH_RATE_PER_SECOND must be > 0 (got %.2f)", c.PushRatePerSecond))
		}
		if c.PushMaxAttempts < 1 || c.PushMaxAttempts > 100 {
			errs = append(errs, fmt.Errorf("PUSH_MAX_ATTEMPTS must be 1..100 (got %d)", c.PushMaxAttempts))
		}
	}

	return errors.Join(errs...)
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	// net/http drops cookies whose names it cannot serialize
	return (&http.Cookie{Name: name, Value: "x"}).Valid() == nil
}
