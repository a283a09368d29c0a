package consent

import "strings"

// crawlers are matched as lowercase substrings of the User-Agent header.
// Agents are trivially spoofed. This only decides what gets indexed.
var crawlers = []string{"googlebot", "bingbot", "linkedinbot"}

// IsCrawler reports whether ua identifies a known search-engine crawler.
func IsCrawler(ua string) bool {
	if ua == "" {
		return false
	}
	ua = strings.ToLower(ua)
	for _, bot := range crawlers {
		if strings.Contains(ua, bot) {
			return true
		}
	}
	return false
}
