// Package ui holds the page chrome and small shared components. Pages are
// trees of templ.Components built with El, Text and Group; only El writes
// markup directly.
package ui

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Writer accumulates the first write error so components can emit markup
// without checking every call.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Raw writes trusted markup as-is.
func (h *Writer) Raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

// Text writes s HTML-escaped. Safe in element bodies and quoted attributes.
func (h *Writer) Text(s string) { h.Raw(templ.EscapeString(s)) }

// URL writes a sanitized, escaped URL for use in href/src/action attributes.
func (h *Writer) URL(s string) { h.Text(string(templ.URL(s))) }

func (h *Writer) Render(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}

func (h *Writer) Err() error { return h.err }

// Group renders components back to back.
func Group(cs ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := NewWriter(w)
		for _, c := range cs {
			h.Render(ctx, c)
		}
		return h.Err()
	})
}

// Text renders s escaped.
func Text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := NewWriter(w)
		h.Text(s)
		return h.Err()
	})
}
