package consent

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sanctuaryweb/site/internal/log"
)

// API serves the consent endpoints. Routes must sit behind the provider's
// Middleware.
type API struct {
	provider *Provider
	logger   log.Logger
}

func NewAPI(p *Provider, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{provider: p, logger: logger}
}

// RegisterRoutes attaches the consent endpoints to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get(GrantPath, api.HandleState)
	r.Post(GrantPath, api.HandleGrant)
}

// StateResponse mirrors the visitor's consent state.
type StateResponse struct {
	Loaded  bool              `json:"loaded"`
	Consent map[Category]bool `json:"consent"`
	Error   string            `json:"error,omitempty"`
}

// HandleState reports the current visitor's grants.
func (api *API) HandleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := SessionFromContext(ctx)
	if s == nil {
		api.missingSession(ctx, w)
		return
	}
	api.provider.Await(ctx, s)
	api.writeJSON(ctx, w, http.StatusOK, stateOf(s))
}

// HandleGrant grants the single category named by the "category" form value
// and sends the visitor back to "return".
func (api *API) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := SessionFromContext(ctx)
	if s == nil {
		api.missingSession(ctx, w)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	c, err := ParseCategory(r.PostForm.Get("category"))
	if err != nil {
		api.logger.Debug(ctx, "consent grant rejected", "category", r.PostForm.Get("category"))
		if wantsJSON(r) {
			api.writeJSON(ctx, w, http.StatusBadRequest, StateResponse{Error: "unknown consent category"})
			return
		}
		http.Error(w, "unknown consent category", http.StatusBadRequest)
		return
	}

	if err := api.provider.Grant(ctx, s, c); err != nil {
		api.logger.Error(ctx, err, "consent grant not persisted", "category", string(c))
		if wantsJSON(r) {
			api.writeJSON(ctx, w, http.StatusServiceUnavailable, StateResponse{Error: "consent could not be saved"})
			return
		}
		http.Error(w, "consent could not be saved, please try again", http.StatusServiceUnavailable)
		return
	}

	api.logger.Info(ctx, "consent granted", "category", string(c), "visitor_id", s.VisitorID())

	if wantsJSON(r) {
		api.provider.Await(ctx, s)
		api.writeJSON(ctx, w, http.StatusOK, stateOf(s))
		return
	}
	http.Redirect(w, r, SafeReturnPath(r.PostForm.Get("return")), http.StatusSeeOther)
}

func (api *API) missingSession(ctx context.Context, w http.ResponseWriter) {
	api.logger.Error(ctx, errors.New("no consent session in request context"), "consent route not wrapped by middleware")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

func stateOf(s *Session) StateResponse {
	return StateResponse{Loaded: s.Loaded(), Consent: s.Snapshot()}
}

func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

// SafeReturnPath returns p when it is a path on this site, and "/" otherwise.
func SafeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") {
		return "/"
	}
	// "//host" and "/\host" are treated as absolute by browsers
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, `/\`) {
		return "/"
	}
	if strings.ContainsAny(p, "\r\n\t\\") {
		return "/"
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "/"
	}
	return p
}
