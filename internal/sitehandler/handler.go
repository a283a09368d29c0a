package sitehandler

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"net/http"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/sanctuaryweb/site/internal/log"
	"github.com/sanctuaryweb/site/internal/ui"
)

// Handler serves the embedded static files and the themed 404 page.
type Handler struct {
	opts Options
	// etags is keyed by file name. Embedded files have no modtime, so
	// revalidation relies on content hashes computed once at startup.
	etags map[string]string
}

func New(opts Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	etags, err := hashFiles(opts.Assets)
	if err != nil {
		return nil, err
	}
	return &Handler{opts: opts, etags: etags}, nil
}

func hashFiles(fsys fs.FS) (map[string]string, error) {
	out := map[string]string{}
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(b)
		out[name] = `"` + hex.EncodeToString(sum[:8]) + `"`
		return nil
	})
	return out, err
}

// AssetPattern is the chi route for the asset prefix.
func (h *Handler) AssetPattern() string { return h.opts.AssetPrefix + "*" }

// RootFiles lists files that are also served at the site root.
func (h *Handler) RootFiles() []string { return slices.Clone(h.opts.RootFiles) }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name, ok := resolveAsset(r.URL.Path, h.opts.AssetPrefix, h.opts.Assets)
	if !ok {
		root := strings.TrimPrefix(r.URL.Path, "/")
		if slices.Contains(h.opts.RootFiles, root) && existsFile(h.opts.Assets, root) {
			name, ok = root, true
		}
	}
	if !ok {
		h.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", cacheControlForFile(name, &h.opts))
	if etag := h.etags[name]; etag != "" {
		w.Header().Set("ETag", etag)
	}
	http.ServeFileFS(w, r, h.opts.Assets, name)
}

// NotFound renders the site-styled 404 page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	templ.Handler(notFoundPage(),
		templ.WithStatus(http.StatusNotFound),
		templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				log.FromContext(r.Context()).Error(r.Context(), err, "render 404 page")
				http.Error(w, "not found", http.StatusNotFound)
			})
		}),
	).ServeHTTP(w, r)
}

func notFoundPage() templ.Component {
	body := ui.El("section", ui.Attrs(ui.A("class", "not-found")),
		ui.El("h1", nil, ui.Text("We could not find that page")),
		ui.El("p", nil,
			ui.Text("It may have moved, or the animal you are looking for has retired. "),
			ui.El("a", ui.Attrs(ui.Href("href", "/ambassadors")), ui.Text("Meet the ambassadors")),
		),
	)
	return ui.Layout(ui.Page{Title: "Not Found"}, body)
}
