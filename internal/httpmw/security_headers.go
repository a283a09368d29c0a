package httpmw

import (
	"net/http"
	"strings"
)

// FrameSources are the third-party origins consent-gated embeds load from.
var FrameSources = []string{
	"https://www.youtube-nocookie.com",
	"https://player.twitch.tv",
}

// ContentSecurityPolicy is sent on every response. Only FrameSources may be
// framed, and only same-origin forms are allowed.
var ContentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self'",
	"style-src 'self'",
	"img-src 'self' data:",
	"font-src 'self'",
	"frame-src " + strings.Join(FrameSources, " "),
	"base-uri 'self'",
	"form-action 'self'",
	"frame-ancestors 'none'",
	"object-src 'none'",
	"upgrade-insecure-requests",
}, "; ")

// SecurityHeaders adds the site's security headers.
//
// The consent form posts with the visitor cookie set SameSite=Lax, so a
// cross-site POST arrives without it and cannot grant for the victim.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		h.Set("Content-Security-Policy", ContentSecurityPolicy)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), geolocation=(), magnetometer=(), microphone=(), payment=(), usb=()")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		// YouTube and Twitch players do not send CORP headers, so
		// require-corp would block them.
		h.Set("Cross-Origin-Embedder-Policy", "unsafe-none")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
