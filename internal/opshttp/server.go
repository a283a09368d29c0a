// Package opshttp serves the admin listener: metrics, health checks and
// profiling. It is bound to a separate port and refuses public peers.
package opshttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/sanctuaryweb/site/internal/health"
	"github.com/sanctuaryweb/site/internal/httpmw"
	"github.com/sanctuaryweb/site/internal/httpserver"
	"github.com/sanctuaryweb/site/internal/log"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

const DefaultPort = 9000

// NewHandler builds the admin mux behind the network guard.
func NewHandler(opts *Options) http.Handler {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}
	mux := http.NewServeMux()

	mux.Handle("/-/healthy", health.HealthzHandler(opts.Health))
	mux.Handle("/-/ready", health.ReadyzHandler(opts.Readiness))
	if opts.Status != nil {
		mux.Handle("/-/status", opts.Status)
	}
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	registerPprof(mux, opts.EnablePprof)

	h := requireNonPublicNetwork(L, mux)
	if opts.UseRecoverMW {
		h = httpmw.Recover(L, opts.OnPanic)(h)
	}
	return h
}

// Start serves the admin listener in the background and returns its stop
// function. Stop is safe to call more than once.
func Start(ctx context.Context, opts *Options) (func(context.Context) error, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	L := opts.Logger
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := fmt.Sprintf(":%d", port)

	srv := httpserver.NewServer(addr, NewHandler(opts))
	// pprof profile and trace stream for up to their "seconds" argument
	if opts.EnablePprof {
		srv.WriteTimeout = 0
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen for admin port on %s", addr)
	}

	go func() {
		L.Info(ctx, "ops http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			L.Error(ctx, err, "ops http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			L.Info(sctx, "ops http server shutting down")
			c, cancel := context.WithTimeout(sctx, httpserver.DefaultShutdownTimeout)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
