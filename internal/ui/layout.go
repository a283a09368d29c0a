package ui

import "github.com/a-h/templ"

const siteName = "Sanctuary"

// Page is the per-page head metadata.
type Page struct {
	Title       string
	Description string
	// Canonical is an absolute URL; omitted when empty.
	Canonical string
}

func (p Page) fullTitle() string {
	if p.Title == "" {
		return siteName
	}
	return p.Title + " | " + siteName
}

type navItem struct{ href, label string }

var nav = []navItem{
	{"/", "Home"},
	{"/ambassadors", "Ambassadors"},
}

// Layout wraps body in the document shell shared by every page.
func Layout(p Page, body templ.Component) templ.Component {
	var description, canonical templ.Component
	if p.Description != "" {
		description = El("meta", Attrs(A("name", "description"), A("content", p.Description)))
	}
	if p.Canonical != "" {
		canonical = El("link", Attrs(A("rel", "canonical"), Href("href", p.Canonical)))
	}

	head := El("head", nil,
		El("meta", Attrs(A("charset", "utf-8"))),
		El("meta", Attrs(A("name", "viewport"), A("content", "width=device-width, initial-scale=1"))),
		El("title", nil, Text(p.fullTitle())),
		description,
		canonical,
		El("link", Attrs(A("rel", "stylesheet"), Href("href", "/assets/site.css"))),
	)

	items := make([]templ.Component, 0, len(nav))
	for _, n := range nav {
		items = append(items, El("li", nil, El("a", Attrs(Href("href", n.href)), Text(n.label))))
	}
	header := El("header", Attrs(A("class", "site-header")),
		El("a", Attrs(A("class", "site-name"), Href("href", "/")), Text(siteName)),
		El("nav", nil, El("ul", nil, items...)),
	)
	footer := El("footer", Attrs(A("class", "site-footer")),
		El("p", nil, Text("Third-party embeds load only after you consent to them.")),
	)

	return Group(
		templ.Raw("<!doctype html>\n"),
		El("html", Attrs(A("lang", "en")), head, El("body", nil, header, El("main", nil, body), footer)),
		templ.Raw("\n"),
	)
}
