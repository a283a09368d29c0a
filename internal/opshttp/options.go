package opshttp

import (
	"net/http"

	"github.com/sanctuaryweb/site/internal/health"
	"github.com/sanctuaryweb/site/internal/log"
)

type Options struct {
	Logger      log.Logger
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// Status, when set, is served as JSON at /-/status.
	Status       http.Handler
	UseRecoverMW bool
	OnPanic      func()
}
