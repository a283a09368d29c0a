package consent

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sanctuaryweb/site/internal/xerrors"
)

// Category names a class of third-party content that needs opt-in.
type Category string

const (
	YouTube Category = "youtube"
	Twitch  Category = "twitch"
)

// Metadata is the static description shown in consent prompts.
type Metadata struct {
	Name    string
	Privacy string
}

// Explainer completes the prompt sentence "It ...".
const Explainer = "may set cookies and collect data about your visit, which is governed by the third party's own privacy policy"

var ErrUnknownCategory = errors.New("unknown consent category")

var registry = map[Category]Metadata{
	YouTube: {Name: "YouTube", Privacy: "https://policies.google.com/privacy"},
	Twitch:  {Name: "Twitch", Privacy: "https://www.twitch.tv/p/legal/privacy-notice/"},
}

// Lookup returns the metadata for c.
func Lookup(c Category) (Metadata, bool) {
	m, ok := registry[c]
	return m, ok
}

// MustLookup is Lookup for call sites where c is a compile-time constant.
// It panics on an unregistered category.
func MustLookup(c Category) Metadata {
	m, ok := registry[c]
	if !ok {
		panic(fmt.Sprintf("consent: unregistered category %q", string(c)))
	}
	return m
}

// ParseCategory validates untrusted input such as a form value.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[c]; !ok {
		return "", xerrors.Wrapf(ErrUnknownCategory, "%q", s)
	}
	return c, nil
}

// Categories lists every registered category in name order.
func Categories() []Category {
	out := make([]Category, 0, len(registry))
	for c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
