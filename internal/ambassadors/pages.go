package ambassadors

import (
	"slices"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/sanctuaryweb/site/internal/consent"
	"github.com/sanctuaryweb/site/internal/share"
	"github.com/sanctuaryweb/site/internal/ui"
)

const indexDescription = "Meet the animal ambassadors who live at the sanctuary and help visitors learn about their wild relatives."

// IndexPage lists active ambassadors grouped by class, then the enclosures.
func IndexPage(siteURL string) templ.Component {
	groups := map[string][]string{}
	for _, k := range ActiveKeys() {
		label := Classification(Catalogue[k].Class)
		groups[label] = append(groups[label], k)
	}
	labels := make([]string, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	slices.Sort(labels)

	body := []templ.Component{
		ui.El("h1", nil, ui.Text("Ambassadors")),
		ui.El("p", ui.Attrs(ui.A("class", "lead")), ui.Text(indexDescription)),
	}
	for _, label := range labels {
		keys := groups[label]
		items := make([]templ.Component, 0, len(keys))
		for _, k := range keys {
			a := Catalogue[k]
			items = append(items, ui.El("li", nil,
				ui.El("a", ui.Attrs(ui.Href("href", Path(k))), ui.Text(a.Name)),
				ui.Text(" "),
				ui.El("span", ui.Attrs(ui.A("class", "species")), ui.Text(a.Species)),
			))
		}
		body = append(body, ui.El("section", ui.Attrs(ui.A("class", "classification"), ui.A("id", ClassificationAnchor(Catalogue[keys[0]].Class))),
			ui.El("h2", nil, ui.Text(label)),
			ui.El("ul", ui.Attrs(ui.A("class", "ambassador-list")), items...),
		))
	}

	keys := make([]string, 0, len(Enclosures))
	for k := range Enclosures {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	enclosures := []templ.Component{ui.El("h2", nil, ui.Text("Enclosures"))}
	for _, k := range keys {
		e := Enclosures[k]
		enclosures = append(enclosures,
			ui.El("h3", ui.Attrs(ui.A("id", "enclosures:"+CamelToKebab(k))), ui.Text(e.Name)),
			ui.El("p", nil, ui.Text(e.Description)),
		)
	}
	body = append(body, ui.El("section", ui.Attrs(ui.A("class", "enclosures"), ui.A("id", "enclosures")), enclosures...))

	return ui.Layout(ui.Page{
		Title:       "Ambassadors",
		Description: indexDescription,
		Canonical:   absolute(siteURL, "/ambassadors"),
	}, ui.Group(body...))
}

// ProfilePage renders one ambassador. Animal Quest episodes are gated on
// YouTube consent but stay visible to search crawlers.
func ProfilePage(key string, a Ambassador, siteURL string) templ.Component {
	title := a.Name + " | Ambassadors"
	description := a.Name + " is a Sanctuary Ambassador. " + a.Story + " " + a.Mission
	canonical := absolute(siteURL, Path(key))

	body := []templ.Component{ui.El("h1", nil, ui.Text(a.Name))}
	if len(a.Alternate) > 0 {
		body = append(body, ui.El("p", ui.Attrs(ui.A("class", "alternate")), ui.Text("also: "+strings.Join(a.Alternate, "; "))))
	}
	body = append(body,
		ui.El("div", ui.Attrs(ui.A("class", "story")),
			ui.El("p", nil, ui.Text(a.Story)),
			ui.El("p", nil, ui.Text(a.Mission)),
		),
		stats(a),
	)
	for _, ep := range EpisodesFor(key) {
		body = append(body, episode(a, ep))
	}
	body = append(body, share.Links(share.Target{URL: canonical, Title: title, Text: description}))

	return ui.Layout(ui.Page{Title: title, Description: description, Canonical: canonical},
		ui.El("article", ui.Attrs(ui.A("class", "ambassador")), body...))
}

func stats(a Ambassador) templ.Component {
	var rows []templ.Component
	stat := func(title string, value ...templ.Component) {
		rows = append(rows, ui.El("dt", nil, ui.Text(title)), ui.El("dd", nil, value...))
	}

	stat("Species",
		ui.El("p", nil, ui.Text(a.Species)),
		ui.El("p", ui.Attrs(ui.A("class", "scientific")),
			ui.El("i", nil, ui.Text(a.Scientific)),
			ui.Text(" ("),
			ui.El("a", ui.Attrs(ui.Href("href", "/ambassadors#"+ClassificationAnchor(a.Class))), ui.Text(Classification(a.Class))),
			ui.Text(")"),
		),
	)
	status := "IUCN: " + IUCNStatus(a.IUCN.Status)
	if u := IUCNURL(a.IUCN.ID); u != "" {
		stat("Conservation Status", ui.ExternalLink(ui.Link{Href: u, Text: status, Discoverable: true}))
	} else {
		stat("Conservation Status", ui.Text(status))
	}
	stat("Native To", ui.Text(a.Native))
	stat("Date of Birth", ui.Text(FormatPartialDate(a.Birth)))
	sex := a.Sex
	if sex == "" {
		sex = "Unknown"
	}
	stat("Sex", ui.Text(sex))
	stat("Arrived at the Sanctuary", ui.Text(FormatPartialDate(a.Arrival)))
	if e, ok := Enclosures[a.Enclosure]; ok {
		stat("Enclosure", ui.El("a", ui.Attrs(ui.Href("href", "/ambassadors#enclosures:"+CamelToKebab(a.Enclosure))), ui.Text(e.Name)))
	}
	return ui.El("dl", ui.Attrs(ui.A("class", "stats")), rows...)
}

func episode(a Ambassador, ep EpisodeRef) templ.Component {
	heading := "Animal Quest #" + strconv.Itoa(ep.Number) + ": " + ep.Edition
	lead := "Learn more on Animal Quest"
	if ep.Relation == RelationFeatured {
		lead = "Learn more about " + a.Name + " on Animal Quest"
	}
	return ui.El("section", ui.Attrs(ui.A("class", "animal-quest"), ui.A("id", "animal-quest-"+strconv.Itoa(ep.Number))),
		ui.El("h2", nil, ui.Text(heading)),
		ui.El("p", nil, ui.Text(lead)),
		consent.Gate(consent.Props{
			Item:      heading,
			Category:  consent.YouTube,
			Indexable: true,
			Class:     "animal-quest-video",
		}, ui.YouTubeEmbed(ep.VideoID, heading)),
	)
}

func absolute(siteURL, path string) string {
	if siteURL == "" {
		return ""
	}
	return strings.TrimSuffix(siteURL, "/") + path
}
