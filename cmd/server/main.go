package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sanctuaryweb/site/internal/ambassadors"
	"github.com/sanctuaryweb/site/internal/cfg"
	"github.com/sanctuaryweb/site/internal/consent"
	"github.com/sanctuaryweb/site/internal/health"
	"github.com/sanctuaryweb/site/internal/home"
	"github.com/sanctuaryweb/site/internal/httpmw"
	"github.com/sanctuaryweb/site/internal/httpserver"
	"github.com/sanctuaryweb/site/internal/log"
	"github.com/sanctuaryweb/site/internal/metrics"
	"github.com/sanctuaryweb/site/internal/notifications"
	"github.com/sanctuaryweb/site/internal/opshttp"
	"github.com/sanctuaryweb/site/internal/otelx"
	"github.com/sanctuaryweb/site/internal/prof"
	"github.com/sanctuaryweb/site/internal/ratelimit"
	"github.com/sanctuaryweb/site/internal/sitehandler"
	"github.com/sanctuaryweb/site/internal/sitehttp"
	"github.com/sanctuaryweb/site/internal/storage/sqlitedb"
	v "github.com/sanctuaryweb/site/internal/version"
	"github.com/sanctuaryweb/site/internal/webassets"
)

func main() {
	startedAt := time.Now()
	vi := v.Get()

	showVersion := flag.Bool("V", false, "Print version+build information and exit")
	conf, err := cfg.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Printf("%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%s)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion, vi.Dirty())
		os.Exit(0)
	}
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(2)
	}

	// setup logging
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              conf.LogJSON,
		IncludeErrorLinks: conf.IncludeErrorLinks,
		MaxErrorLinks:     conf.MaxErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")

	// first signal starts the drain, a second one skips it
	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.Dirty(),
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"database_path", conf.DatabasePath,
		"site_url", conf.SiteURL,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"enable_push_dispatch", conf.EnablePushDispatch,
		"trusted_proxy_hops", conf.TrustedProxyHops,
		"trace_sample", conf.TraceSample,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)

	// setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
		OnActive: m.SetProfilingActive,
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// collector runs on localhost, hence Insecure
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	db, err := sqlitedb.Open(ctx, conf.DatabasePath)
	if err != nil {
		L.Error(ctx, err, "failed to open database", "database_path", conf.DatabasePath)
		os.Exit(1)
	}
	defer db.Close()

	// consent: visitor sessions, the gate's source of truth
	provider, err := consent.NewProvider(consent.Options{
		Store:          consent.NewSQLStore(db),
		Logger:         L.With("subsystem", "consent"),
		Recorder:       m.ConsentRecorder(),
		CookieName:     conf.ConsentCookieName,
		CookieMaxAge:   conf.ConsentCookieMaxAge,
		CookieSecure:   conf.ConsentCookieSecure,
		HydrateTimeout: conf.ConsentHydrateTimeout,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create consent provider")
		os.Exit(1)
	}

	store := notifications.NewStore(db)

	site, err := sitehandler.New(sitehandler.Options{Logger: L, Assets: webassets.StaticFS()})
	if err != nil {
		L.Error(ctx, err, "failed to create site handler")
		os.Exit(1)
	}

	var gate health.ShutdownGate
	readiness := []health.Probe{gate.Probe(), health.DBPing(db, 0)}

	workers, workerCtx := errgroup.WithContext(ctx)
	if conf.EnablePushDispatch {
		dispatcher := notifications.NewDispatcher(notifications.DispatcherOptions{
			Logger:        L.With("subsystem", "push"),
			Store:         store,
			Sender:        notifications.NewWebhookSender(nil, 10*time.Second),
			PollInterval:  conf.PushPollInterval,
			BatchSize:     conf.PushBatchSize,
			RatePerSecond: conf.PushRatePerSecond,
			MaxAttempts:   conf.PushMaxAttempts,
			Metrics:       m,
		})
		// a few missed polls in a row means the loop is stuck
		readiness = append(readiness, health.Heartbeat("push dispatcher", dispatcher.LastPoll, 4*conf.PushPollInterval, nil))
		workers.Go(func() error {
			if err := dispatcher.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// pages get one limiter, consent grants and subscriptions another
	pageLimiter := ratelimit.New(ctx, ratelimit.Options{
		Name:      "pages",
		PerSecond: conf.RateLimitPerSecond,
		Burst:     conf.RateLimitBurst,
		OnDenied:  func(string) { m.IncRateLimitDenied("pages") },
		OnFirstDenied: func(ip string) {
			L.Warn(ctx, "rate limit triggered", "limiter", "pages", "client.address", ip)
		},
	})
	writeLimiter := ratelimit.New(ctx, ratelimit.Options{
		Name:      "writes",
		PerSecond: conf.WriteRateLimitPerSecond,
		Burst:     conf.WriteRateLimitBurst,
		OnDenied:  func(string) { m.IncRateLimitDenied("writes") },
		OnFirstDenied: func(ip string) {
			L.Warn(ctx, "rate limit triggered", "limiter", "writes", "client.address", ip)
		},
	})

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  pageLimiter.Middleware,
		WriteLimitMW: writeLimiter.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		Health:       health.Fixed(true, ""),
		Readiness:    health.All(readiness...),
		SessionMW:    provider.Middleware,
		Pages: []httpserver.RouteRegistrar{
			home.NewHandler(home.Options{
				Logger:        L,
				Announcements: store,
				SiteURL:       conf.SiteURL,
				TwitchChannel: conf.TwitchChannel,
			}),
			ambassadors.NewHandler(ambassadors.Options{
				Logger:   L,
				SiteURL:  conf.SiteURL,
				NotFound: http.HandlerFunc(site.NotFound),
			}),
			consent.NewAPI(provider, L),
		},
		APIs: []httpserver.RouteRegistrar{notifications.NewAPI(store, store, L)},
		Site: sitehttp.New(site),
	})
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener")
		os.Exit(1)
	}

	// admin listener: metrics, health, pprof. It refuses public and proxied
	// peers in case a security group or load balancer is misconfigured.
	opsHTTPStop, err := opshttp.Start(ctx, &opshttp.Options{
		Logger:       L,
		Port:         conf.AdminPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       health.Fixed(true, ""),
		Readiness:    health.All(readiness...),
		Status:       opshttp.StatusHandler(vi, startedAt, nil),
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd not notified", "reason", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")
	stopSignals()

	// fail readiness so load balancers stop sending new requests
	gate.Close("draining")
	L.Info(context.Background(), "shutdown gate closed", "drain_delay", conf.DrainDelay.String())

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.DrainDelay):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := workers.Wait(); err != nil {
		L.Error(context.Background(), err, "background worker failed")
	}
	// wait for in-flight hydrations before closing the database under them
	if err := provider.Drain(shutdownCtx); err != nil {
		L.Warn(context.Background(), "consent hydrations still running at shutdown", "error", err)
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	L.Info(context.Background(), "shutdown complete", "uptime", time.Since(startedAt).Round(time.Second).String())
}

func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return errors.New("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: dial: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		_ = conn.Close()
		return fmt.Errorf("systemd notify: write: %w", err)
	}
	return conn.Close()
}
