package notifications

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceLabel turns a User-Agent into a label like "Firefox on Linux" so
// subscribers can tell their registrations apart.
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	// family only: "Linux", not "Linux x86_64"
	os := ua.OSInfo().Name

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			os = platform
		}
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
