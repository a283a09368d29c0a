// Package home serves the landing page.
package home

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/sanctuaryweb/site/internal/ambassadors"
	"github.com/sanctuaryweb/site/internal/consent"
	"github.com/sanctuaryweb/site/internal/log"
	"github.com/sanctuaryweb/site/internal/notifications"
	"github.com/sanctuaryweb/site/internal/ui"
)

const description = "An animal sanctuary and education centre. Meet our ambassadors and watch the sanctuary live."

// Announcements is the part of the notification store the page reads.
type Announcements interface {
	ActiveAnnouncements(ctx context.Context, now time.Time) ([]notifications.Notification, error)
}

type Options struct {
	Logger        log.Logger
	Announcements Announcements
	SiteURL       string
	// TwitchChannel is embedded behind Twitch consent. Empty hides the player.
	TwitchChannel string
	Now           func() time.Time
}

type Handler struct {
	logger        log.Logger
	announcements Announcements
	siteURL       string
	twitchParent  string
	twitchChannel string
	now           func() time.Time
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var parent string
	if u, err := url.Parse(opts.SiteURL); err == nil {
		parent = u.Hostname()
	}
	return &Handler{
		logger:        opts.Logger,
		announcements: opts.Announcements,
		siteURL:       opts.SiteURL,
		twitchParent:  parent,
		twitchChannel: opts.TwitchChannel,
		now:           opts.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ServeHTTP)
}

// ServeHTTP renders the home page. Announcements that fail to load are
// logged and left out rather than failing the page.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var list []notifications.Notification
	if h.announcements != nil {
		var err error
		list, err = h.announcements.ActiveAnnouncements(ctx, h.now())
		if err != nil {
			h.logger.Error(ctx, err, "load announcements for home page")
			list = nil
		}
	}

	w.Header().Set("Cache-Control", "private, no-cache")
	templ.Handler(Page(PageData{
		SiteURL:       h.siteURL,
		Announcements: list,
		TwitchChannel: h.twitchChannel,
		TwitchParent:  h.twitchParent,
	})).ServeHTTP(w, r)
}

type PageData struct {
	SiteURL       string
	Announcements []notifications.Notification
	TwitchChannel string
	TwitchParent  string
}

func Page(d PageData) templ.Component {
	body := []templ.Component{
		ui.El("h1", nil, ui.Text("Welcome to the Sanctuary")),
		ui.El("p", ui.Attrs(ui.A("class", "lead")), ui.Text(description)),
	}

	if len(d.Announcements) > 0 {
		items := make([]templ.Component, 0, len(d.Announcements))
		for _, n := range d.Announcements {
			items = append(items, announcement(n))
		}
		body = append(body, ui.El("section", ui.Attrs(ui.A("class", "announcements"), ui.A("aria-label", "Announcements")),
			ui.El("ul", nil, items...)))
	}

	if d.TwitchChannel != "" && d.TwitchParent != "" {
		body = append(body, ui.El("section", ui.Attrs(ui.A("class", "live")),
			ui.El("h2", nil, ui.Text("Watch live")),
			consent.Gate(consent.Props{
				Item:     "the live stream",
				Category: consent.Twitch,
				Class:    "live-player",
			}, ui.TwitchEmbed(d.TwitchChannel, d.TwitchParent)),
		))
	}

	keys := ambassadors.ActiveKeys()
	links := make([]templ.Component, 0, len(keys))
	for _, k := range keys {
		links = append(links, ui.El("li", nil,
			ui.El("a", ui.Attrs(ui.Href("href", ambassadors.Path(k))), ui.Text(ambassadors.Catalogue[k].Name))))
	}
	body = append(body, ui.El("section", ui.Attrs(ui.A("class", "meet")),
		ui.El("h2", nil, ui.Text("Meet the ambassadors")),
		ui.El("ul", ui.Attrs(ui.A("class", "ambassador-list")), links...),
		ui.El("p", nil, ui.El("a", ui.Attrs(ui.Href("href", "/ambassadors")), ui.Text("All ambassadors"))),
	))

	return ui.Layout(ui.Page{Description: description, Canonical: d.SiteURL}, ui.Group(body...))
}

func announcement(n notifications.Notification) templ.Component {
	parts := []templ.Component{ui.El("strong", nil, ui.Text(n.Title))}
	if n.Message != "" {
		parts = append(parts, ui.Text(" "), ui.El("span", nil, ui.Text(n.Message)))
	}
	if n.LinkURL != "" {
		parts = append(parts, ui.Text(" "), ui.ExternalLink(ui.Link{Href: n.LinkURL, Text: "More"}))
	}
	return ui.El("li", ui.Attrs(ui.A("class", "announcement")), parts...)
}
