package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sanctuaryweb/site/internal/log"
)

const (
	defaultTake = 10
	// maxSubscriptionBody bounds POST /api/push/subscriptions.
	maxSubscriptionBody = 16 << 10
)

// Reader is the read side of Store used by the HTTP API and pages.
type Reader interface {
	RecentForTags(ctx context.Context, tags []string, take int) ([]Notification, error)
	ActiveAnnouncements(ctx context.Context, now time.Time) ([]Notification, error)
	ByID(ctx context.Context, id string) (Notification, error)
	Recent(ctx context.Context, take int) ([]Notification, error)
}

// Subscriber registers push endpoints.
type Subscriber interface {
	CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error)
}

// API implements the notification endpoints.
type API struct {
	reader     Reader
	subscriber Subscriber
	logger     log.Logger
	now        func() time.Time
}

func NewAPI(reader Reader, subscriber Subscriber, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{reader: reader, subscriber: subscriber, logger: logger, now: time.Now}
}

// RegisterRoutes attaches notification endpoints to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/api/notifications", api.HandleList)
	r.Get("/api/notifications/announcements", api.HandleAnnouncements)
	r.Get("/api/notifications/{id}", api.HandleByID)
	r.Post("/api/push/subscriptions", api.HandleSubscribe)
}

type listResponse struct {
	Notifications []Notification `json:"notifications"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleList serves ?tags=a,b&take=n. Without a tags parameter it lists every
// tag; a tags parameter naming no tag is a 400.
func (api *API) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	take := defaultTake
	if raw := q.Get("take"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxTake {
			api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "take must be 1.." + strconv.Itoa(MaxTake)})
			return
		}
		take = n
	}

	var (
		list []Notification
		err  error
	)
	if raw, ok := q["tags"]; ok {
		tags := splitQueryTags(raw)
		if len(tags) == 0 {
			api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "tags must name at least one tag"})
			return
		}
		list, err = api.reader.RecentForTags(ctx, tags, take)
	} else {
		list, err = api.reader.Recent(ctx, take)
	}
	if err != nil {
		api.internalError(ctx, w, err, "list notifications")
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, listResponse{Notifications: list})
}

func (api *API) HandleAnnouncements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := api.reader.ActiveAnnouncements(ctx, api.now())
	if err != nil {
		api.internalError(ctx, w, err, "list announcements")
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, listResponse{Notifications: list})
}

func (api *API) HandleByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := api.reader.ByID(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "notification not found"})
		return
	}
	if err != nil {
		api.internalError(ctx, w, err, "read notification")
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, n)
}

type subscribeRequest struct {
	Endpoint string   `json:"endpoint"`
	Tags     []string `json:"tags"`
}

// HandleSubscribe registers a push endpoint. The device label comes from
// the request's User-Agent.
func (api *API) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req subscribeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubscriptionBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	sub, err := api.subscriber.CreateSubscription(ctx, Subscription{
		Endpoint: req.Endpoint,
		Tags:     req.Tags,
		Device:   DeviceLabel(r.UserAgent()),
	})
	if errors.Is(err, ErrInvalidInput) {
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "endpoint must be an http(s) URL and tags must not be empty"})
		return
	}
	if err != nil {
		api.internalError(ctx, w, err, "create subscription")
		return
	}

	api.logger.Info(ctx, "push subscription registered",
		"subscription_id", sub.ID,
		"tags", strings.Join(sub.Tags, ","),
		"device", sub.Device,
	)
	api.writeJSON(ctx, w, http.StatusCreated, sub)
}

func (api *API) internalError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	api.logger.Error(ctx, err, "notifications api: "+op)
	api.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

// splitQueryTags accepts both ?tags=a,b and ?tags=a&tags=b.
func splitQueryTags(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
