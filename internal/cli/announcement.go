package cli

import (
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanctuaryweb/site/internal/notifications"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

// notificationFile is the YAML form accepted by "notify create -f".
//
//	tag: announcements
//	title: Open day
//	message: Gates open at 10
//	link: https://sanctuary.example/open-day
//	expires_in: 72h
type notificationFile struct {
	Tag       string `yaml:"tag"`
	Title     string `yaml:"title"`
	Message   string `yaml:"message"`
	Link      string `yaml:"link"`
	ExpiresIn string `yaml:"expires_in"`
	// ExpiresAt is RFC 3339 and wins over ExpiresIn.
	ExpiresAt string `yaml:"expires_at"`
}

func decodeNotificationFile(r io.Reader) (notificationFile, error) {
	var f notificationFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return f, xerrors.Wrap(err, "decode notification file")
	}
	return f, nil
}

// toNotification resolves expiry relative to now. Announcements must
// expire, or they would never show on the home page.
func (f notificationFile) toNotification(now time.Time) (notifications.Notification, error) {
	n := notifications.Notification{
		Tag:     strings.TrimSpace(f.Tag),
		Title:   f.Title,
		Message: f.Message,
		LinkURL: strings.TrimSpace(f.Link),
	}
	if n.Tag == "" {
		n.Tag = notifications.AnnouncementsTag
	}

	switch {
	case f.ExpiresAt != "":
		t, err := time.Parse(time.RFC3339, f.ExpiresAt)
		if err != nil {
			return n, xerrors.Wrapf(err, "expires_at %q", f.ExpiresAt)
		}
		n.ExpiresAt = &t
	case f.ExpiresIn != "":
		d, err := time.ParseDuration(f.ExpiresIn)
		if err != nil {
			return n, xerrors.Wrapf(err, "expires_in %q", f.ExpiresIn)
		}
		if d <= 0 {
			return n, xerrors.Newf("expires_in must be positive (got %s)", d)
		}
		t := now.Add(d)
		n.ExpiresAt = &t
	}

	if n.Tag == notifications.AnnouncementsTag && n.ExpiresAt == nil {
		return n, xerrors.New("announcements need expires_in or expires_at")
	}
	if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
		return n, xerrors.Newf("expiry %s is in the past", n.ExpiresAt.Format(time.RFC3339))
	}
	return n, nil
}
