package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sanctuaryweb/site/internal/version"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

// ErrGone means the endpoint no longer accepts pushes. Such pushes are not
// retried.
var ErrGone = errors.New("push endpoint gone")

// Sender delivers one push.
type Sender interface {
	Send(ctx context.Context, d Delivery) error
}

// WebhookPayload is the JSON body POSTed to subscriber endpoints.
type WebhookPayload struct {
	ID        string     `json:"id"`
	Tag       string     `json:"tag"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	LinkURL   string     `json:"link_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// WebhookSender POSTs notifications as JSON to the subscription endpoint.
type WebhookSender struct {
	client    *http.Client
	userAgent string
}

// NewWebhookSender builds a sender with a traced transport. A nil client
// gets one with the given timeout.
func NewWebhookSender(client *http.Client, timeout time.Duration) *WebhookSender {
	if client == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	v := version.Get()
	return &WebhookSender{client: client, userAgent: v.AppName + "/" + v.Version}
}

func (s *WebhookSender) Send(ctx context.Context, d Delivery) error {
	n := d.Notification
	body, err := json.Marshal(WebhookPayload{
		ID:        n.ID,
		Tag:       n.Tag,
		Title:     n.Title,
		Message:   n.Message,
		LinkURL:   n.LinkURL,
		CreatedAt: n.CreatedAt,
		ExpiresAt: n.ExpiresAt,
	})
	if err != nil {
		return xerrors.Wrap(err, "encode push payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(body))
	if err != nil {
		return xerrors.Wrap(err, "build push request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return xerrors.Wrap(err, "send push")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return xerrors.Wrapf(ErrGone, "status %d", resp.StatusCode)
	default:
		return xerrors.WithStack(fmt.Errorf("push endpoint returned %d", resp.StatusCode))
	}
}
