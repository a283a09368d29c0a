package ui

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Attr is one attribute of an element. Attributes render in the order given.
type Attr struct {
	name  string
	value string
	kind  attrKind
}

type attrKind int

const (
	attrText attrKind = iota
	attrURL
	attrFlag
)

// A is a plain attribute; value is escaped.
func A(name, value string) Attr { return Attr{name: name, value: value} }

// Href is a URL attribute; value is sanitized by templ.URL then escaped.
func Href(name, value string) Attr { return Attr{name: name, value: value, kind: attrURL} }

// Flag is a boolean attribute such as allowfullscreen.
func Flag(name string) Attr { return Attr{name: name, kind: attrFlag} }

// Attrs is shorthand for building an attribute list.
func Attrs(as ...Attr) []Attr { return as }

var voidElements = map[string]bool{
	"br": true, "img": true, "input": true, "link": true, "meta": true,
}

// El renders <tag attrs>children</tag>. Void elements ignore children and
// have no closing tag. tag and attribute names are trusted.
func El(tag string, attrs []Attr, children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := NewWriter(w)
		h.Raw("<" + tag)
		for _, a := range attrs {
			h.Raw(" " + a.name)
			switch a.kind {
			case attrFlag:
				continue
			case attrURL:
				h.Raw(`="`)
				h.URL(a.value)
			default:
				h.Raw(`="`)
				h.Text(a.value)
			}
			h.Raw(`"`)
		}
		h.Raw(">")
		if voidElements[tag] {
			return h.Err()
		}
		for _, c := range children {
			h.Render(ctx, c)
		}
		h.Raw("</" + tag + ">")
		return h.Err()
	})
}
