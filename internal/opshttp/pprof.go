package opshttp

import (
	"net/http"
	"net/http/pprof"
)

// registerPprof mounts the runtime profiles. Without it the prefix is
// shadowed by a 404 so nothing registered on http.DefaultServeMux leaks.
func registerPprof(mux *http.ServeMux, enabled bool) {
	if !enabled {
		mux.Handle("/debug/pprof/", http.NotFoundHandler())
		return
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
