package ambassadors

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/sanctuaryweb/site/internal/log"
)

type Options struct {
	Logger log.Logger
	// SiteURL is the public origin used for canonical and share links.
	SiteURL string
	// NotFound serves unknown and retired names. Defaults to http.NotFound.
	NotFound http.Handler
}

// Handler serves the ambassador index and profile pages. It must sit
// behind the consent middleware so gated episodes can read the visitor's
// state.
type Handler struct {
	logger   log.Logger
	siteURL  string
	notFound http.Handler
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.NotFound == nil {
		opts.NotFound = http.NotFoundHandler()
	}
	return &Handler{logger: opts.Logger, siteURL: opts.SiteURL, notFound: opts.NotFound}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ambassadors", h.HandleIndex)
	r.Get("/ambassadors/{name}", h.HandleProfile)
}

func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, IndexPage(h.siteURL))
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	key, a, ok := Lookup(chi.URLParam(r, "name"))
	if !ok {
		h.notFound.ServeHTTP(w, r)
		return
	}
	h.render(w, r, ProfilePage(key, a, h.siteURL))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	// output depends on the visitor's consent cookie
	w.Header().Set("Cache-Control", "private, no-cache")
	templ.Handler(c, templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
		h.logger.Error(r.Context(), err, "render ambassador page", "path", r.URL.Path)
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		})
	})).ServeHTTP(w, r)
}
