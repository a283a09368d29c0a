package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanctuaryweb/site/internal/consent"
	"github.com/sanctuaryweb/site/internal/version"
)

// ServerMetrics owns a private registry. HTTP labels are limited to method,
// route pattern and status so unknown paths cannot grow the series count.
type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight         prometheus.Gauge
	reqTotal         *prometheus.CounterVec
	reqDur           *prometheus.HistogramVec
	respBytes        *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	httpPanicTotal   prometheus.Counter
	ratelimitDenied  *prometheus.CounterVec
	buildInfo        *prometheus.GaugeVec
	profilingActive  prometheus.Gauge
	consentDecisions *prometheus.CounterVec
	consentGrants    *prometheus.CounterVec
	hydrationDur     *prometheus.HistogramVec
	pushOutcomes     *prometheus.CounterVec
	dispatchDur      prometheus.Histogram
	dispatchErrors   *prometheus.CounterVec
}

func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx responses by method and route",
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered handler panics",
		}),
		ratelimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter, by limiter",
		}, []string{"limiter"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "build_date", "vcs_dirty", "go_version"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		consentDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_gate_decisions_total",
			Help: "Gate render decisions by category and outcome",
		}, []string{"category", "decision"}),
		consentGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_grants_total",
			Help: "Consent grants by category; changed is false for repeat grants",
		}, []string{"category", "changed"}),
		hydrationDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consent_hydration_duration_seconds",
			Help:    "Time to load a visitor's consent state, by result",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25},
		}, []string{"result"}),
		pushOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Push delivery attempts by outcome",
		}, []string{"outcome"}),
		dispatchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "push_dispatch_duration_seconds",
			Help:    "Time spent on one dispatcher poll",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_dispatch_errors_total",
			Help: "Dispatcher storage errors by kind",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errorsTotal,
		m.httpPanicTotal,
		m.ratelimitDenied,
		m.buildInfo,
		m.profilingActive,
		m.consentDecisions,
		m.consentGrants,
		m.hydrationDur,
		m.pushOutcomes,
		m.dispatchDur,
		m.dispatchErrors,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

func (m *ServerMetrics) IncHttpPanic() { m.httpPanicTotal.Inc() }

// IncRateLimitDenied counts a rejected request for the named limiter.
func (m *ServerMetrics) IncRateLimitDenied(limiter string) {
	m.ratelimitDenied.WithLabelValues(limiter).Inc()
}

// SetBuildInfoFromVersion is called once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	m.buildInfo.With(prometheus.Labels{
		"app":        app,
		"component":  component,
		"version":    vi.Version,
		"commit":     vi.Commit,
		"build_date": vi.BuildDate,
		"go_version": vi.GoVersion,
		"vcs_dirty":  vi.Dirty(),
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
		return
	}
	m.profilingActive.Set(0)
}

// ConsentRecorder adapts the metrics to consent.Recorder.
func (m *ServerMetrics) ConsentRecorder() consent.Recorder { return consentRecorder{m} }

type consentRecorder struct{ m *ServerMetrics }

func (r consentRecorder) ObserveDecision(c consent.Category, d consent.Decision) {
	r.m.consentDecisions.WithLabelValues(string(c), d.String()).Inc()
}

func (r consentRecorder) ObserveGrant(c consent.Category, changed bool) {
	r.m.consentGrants.WithLabelValues(string(c), strconv.FormatBool(changed)).Inc()
}

func (r consentRecorder) ObserveHydration(elapsed time.Duration, err error) {
	r.m.hydrationDur.WithLabelValues(hydrationResult(err)).Observe(elapsed.Seconds())
}

func hydrationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// The methods below satisfy notifications.DispatcherMetrics.

func (m *ServerMetrics) IncPushOutcome(outcome string) {
	m.pushOutcomes.WithLabelValues(outcome).Inc()
}

func (m *ServerMetrics) ObserveDispatchDuration(seconds float64) {
	m.dispatchDur.Observe(seconds)
}

func (m *ServerMetrics) IncDispatchError(kind string) {
	m.dispatchErrors.WithLabelValues(kind).Inc()
}
