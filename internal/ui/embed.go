package ui

import (
	"net/url"
	"regexp"

	"github.com/a-h/templ"
)

var youTubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTubeEmbed renders a privacy-enhanced YouTube player. Invalid video ids
// render nothing.
func YouTubeEmbed(videoID, title string) templ.Component {
	if !youTubeID.MatchString(videoID) {
		return templ.NopComponent
	}
	return El("iframe", Attrs(
		A("class", "embed embed-youtube"),
		Href("src", "https://www.youtube-nocookie.com/embed/"+videoID+"?rel=0"),
		A("title", title),
		A("loading", "lazy"),
		A("referrerpolicy", "strict-origin-when-cross-origin"),
		A("allow", "accelerometer; encrypted-media; gyroscope; picture-in-picture"),
		Flag("allowfullscreen"),
	))
}

// TwitchEmbed renders the live player for channel. Twitch refuses to load
// unless parent names the embedding host.
func TwitchEmbed(channel, parent string) templ.Component {
	if channel == "" || parent == "" {
		return templ.NopComponent
	}
	q := url.Values{}
	q.Set("channel", channel)
	q.Set("parent", parent)
	q.Set("muted", "true")
	return El("iframe", Attrs(
		A("class", "embed embed-twitch"),
		Href("src", "https://player.twitch.tv/?"+q.Encode()),
		A("title", channel+" live on Twitch"),
		A("loading", "lazy"),
		Flag("allowfullscreen"),
	))
}
