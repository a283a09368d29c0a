// Package share builds social share links for site pages.
package share

import (
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/sanctuaryweb/site/internal/ui"
)

// Target is the page being shared.
type Target struct {
	URL   string
	Title string
	Text  string
}

func TwitterURL(t Target) string {
	q := url.Values{}
	q.Set("url", t.URL)
	if t.Text != "" {
		q.Set("text", t.Text)
	}
	return "https://twitter.com/intent/tweet?" + q.Encode()
}

func FacebookURL(t Target) string {
	q := url.Values{}
	q.Set("u", t.URL)
	return "https://www.facebook.com/sharer/sharer.php?" + q.Encode()
}

// EmailURL builds a mailto: link with an empty recipient. The body is the
// share text followed by the URL.
func EmailURL(t Target) string {
	body := t.URL
	if t.Text != "" {
		body = t.Text + "\n\n" + t.URL
	}
	return "mailto:?subject=" + mailtoEscape(t.Title) + "&body=" + mailtoEscape(body)
}

// mailtoEscape query-escapes s with spaces as %20. Mail clients show a
// literal "+".
func mailtoEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Links renders the share block. Nothing is rendered without a URL.
func Links(t Target) templ.Component {
	if t.URL == "" {
		return templ.NopComponent
	}
	items := make([]templ.Component, 0, 3)
	for _, l := range []ui.Link{
		{Href: TwitterURL(t), Text: "Twitter", Class: "share-twitter"},
		{Href: FacebookURL(t), Text: "Facebook", Class: "share-facebook"},
		{Href: EmailURL(t), Text: "Email", Class: "share-email"},
	} {
		items = append(items, ui.El("li", nil, ui.ExternalLink(l)))
	}
	return ui.El("div", ui.Attrs(ui.A("class", "share")),
		ui.El("p", ui.Attrs(ui.A("class", "share-label")), ui.Text("Share this page")),
		ui.El("ul", ui.Attrs(ui.A("class", "share-links")), items...),
		ui.El("input", ui.Attrs(ui.A("class", "share-url"), ui.A("type", "url"), ui.Flag("readonly"), ui.A("value", t.URL))),
	)
}
