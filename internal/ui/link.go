package ui

import (
	"strings"

	"github.com/a-h/templ"
)

// Link describes an anchor to another site.
type Link struct {
	Href  string
	Text  string
	Class string
	// Discoverable drops rel="nofollow" so search engines follow the link.
	Discoverable bool
}

// Rel returns the rel attribute for an external link.
func (l Link) Rel() string {
	if l.Discoverable {
		return "noreferrer noopener"
	}
	return "noreferrer noopener nofollow"
}

// ExternalLink renders l opening in a new browsing context.
func ExternalLink(l Link) templ.Component {
	class := "link link-external"
	if c := strings.TrimSpace(l.Class); c != "" {
		class += " " + c
	}
	return El("a", Attrs(
		Href("href", l.Href),
		A("target", "_blank"),
		A("rel", l.Rel()),
		A("class", class),
		A("data-external", "true"),
	),
		Text(l.Text),
		El("span", Attrs(A("class", "sr-only")), Text(" (opens in a new tab)")),
	)
}
