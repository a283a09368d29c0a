// Package sitehttp mounts the static site handler on the public router.
package sitehttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Site is implemented by *sitehandler.Handler.
type Site interface {
	http.Handler
	NotFound(w http.ResponseWriter, r *http.Request)
	AssetPattern() string
	RootFiles() []string
}

type Routes struct {
	Site Site
}

func New(site Site) *Routes {
	return &Routes{Site: site}
}

// RegisterRoutes mounts assets and root files as real routes so metrics and
// spans carry their pattern, then makes the themed 404 the fallback.
// Register it last.
func (rt *Routes) RegisterRoutes(r chi.Router) {
	r.Method(http.MethodGet, rt.Site.AssetPattern(), rt.Site)
	r.Method(http.MethodHead, rt.Site.AssetPattern(), rt.Site)
	for _, name := range rt.Site.RootFiles() {
		r.Method(http.MethodGet, "/"+name, rt.Site)
		r.Method(http.MethodHead, "/"+name, rt.Site)
	}
	r.NotFound(rt.Site.NotFound)
	r.MethodNotAllowed(rt.Site.NotFound)
}
