package consent

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/sanctuaryweb/site/internal/ui"
)

// Decision is what a Gate renders.
type Decision int

const (
	// DecisionPlaceholder: state not loaded yet, render the empty container.
	DecisionPlaceholder Decision = iota
	// DecisionPrompt: ask the visitor to consent.
	DecisionPrompt
	// DecisionContent: render the gated children.
	DecisionContent
)

func (d Decision) String() string {
	switch d {
	case DecisionPlaceholder:
		return "placeholder"
	case DecisionPrompt:
		return "prompt"
	case DecisionContent:
		return "content"
	default:
		return "unknown"
	}
}

// GrantPath is where the prompt form posts.
const GrantPath = "/consent"

type Props struct {
	// Item is shown as "Loading {Item}...".
	Item     string
	Category Category
	// Indexable lets known crawlers see the content without consent.
	Indexable bool
	Class     string
}

// Decide picks what to render for props given the visitor's state and
// user agent. A nil view counts as not loaded.
func Decide(v View, p Props, userAgent string) Decision {
	if v == nil || !v.Loaded() {
		return DecisionPlaceholder
	}
	if (p.Indexable && IsCrawler(userAgent)) || v.Granted(p.Category) {
		return DecisionContent
	}
	return DecisionPrompt
}

// Gate wraps third-party children behind consent for p.Category. It reads
// the visitor's state from the render context (see Middleware and
// WithRequest). An unregistered category panics.
func Gate(p Props, children templ.Component) templ.Component {
	meta := MustLookup(p.Category)

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var (
			view       View
			userAgent  string
			returnPath string
			rec        Recorder = nopRecorder{}
		)
		if st := stateFromContext(ctx); st != nil {
			st.wait(ctx)
			view, userAgent, returnPath, rec = st.view, st.userAgent, st.returnPath, st.rec
		}

		d := Decide(view, p, userAgent)
		rec.ObserveDecision(p.Category, d)

		var body []templ.Component
		switch d {
		case DecisionContent:
			body = []templ.Component{
				ui.El("p", ui.Attrs(ui.A("class", "consent-loading consent-loading-behind"), ui.A("aria-hidden", "true")), loading(p.Item)),
				children,
			}
		case DecisionPrompt:
			body = []templ.Component{
				ui.El("p", ui.Attrs(ui.A("class", "consent-loading")), loading(p.Item)),
				prompt(p.Category, meta, returnPath),
			}
		}

		return ui.El("div", ui.Attrs(
			ui.A("class", containerClass(p.Class)),
			ui.A("data-consent", string(p.Category)),
			ui.A("data-consent-state", d.String()),
		), body...).Render(ctx, w)
	})
}

func containerClass(extra string) string {
	if extra = strings.TrimSpace(extra); extra != "" {
		return "consent " + extra
	}
	return "consent"
}

func loading(item string) templ.Component {
	return ui.Text("Loading " + item + "...")
}

func prompt(c Category, meta Metadata, returnPath string) templ.Component {
	fields := []templ.Component{
		ui.El("input", ui.Attrs(ui.A("type", "hidden"), ui.A("name", "category"), ui.A("value", string(c)))),
	}
	if rp := SafeReturnPath(returnPath); rp != "/" {
		fields = append(fields, ui.El("input", ui.Attrs(ui.A("type", "hidden"), ui.A("name", "return"), ui.A("value", rp))))
	}
	fields = append(fields, ui.El("button", ui.Attrs(ui.A("type", "submit"), ui.A("class", "consent-button")),
		ui.Text("Consent to loading "+meta.Name)))

	return ui.El("div", ui.Attrs(ui.A("class", "consent-prompt")),
		ui.El("p", nil, ui.Text("This content is from a third party and we need your consent to show it. It "+Explainer+".")),
		ui.El("div", ui.Attrs(ui.A("class", "consent-actions")),
			ui.El("form", ui.Attrs(ui.A("method", "post"), ui.Href("action", GrantPath)), fields...),
			ui.ExternalLink(ui.Link{Href: meta.Privacy, Text: "Privacy Policy"}),
		),
	)
}
