package httpmw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeaders(t *testing.T) {
	called := false
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if !called {
		t.Fatal("next handler not called")
	}
	want := map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
		"Cross-Origin-Embedder-Policy": "unsafe-none",
		"Cross-Origin-Opener-Policy":   "same-origin",
		"Content-Security-Policy":      ContentSecurityPolicy,
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if !strings.HasPrefix(rec.Header().Get("Strict-Transport-Security"), "max-age=") {
		t.Error("HSTS missing")
	}
}

func TestContentSecurityPolicy_FramesOnlyEmbeds(t *testing.T) {
	var frameSrc string
	for _, d := range strings.Split(ContentSecurityPolicy, "; ") {
		if strings.HasPrefix(d, "frame-src ") {
			frameSrc = d
		}
	}
	if frameSrc == "" {
		t.Fatal("no frame-src directive")
	}
	for _, origin := range []string{"https://www.youtube-nocookie.com", "https://player.twitch.tv"} {
		if !strings.Contains(frameSrc, origin) {
			t.Errorf("frame-src %q missing %s", frameSrc, origin)
		}
	}
	if strings.Contains(frameSrc, "*") {
		t.Errorf("frame-src must not use wildcards: %q", frameSrc)
	}
	for _, d := range []string{"form-action 'self'", "frame-ancestors 'none'", "object-src 'none'"} {
		if !strings.Contains(ContentSecurityPolicy, d) {
			t.Errorf("CSP missing %q", d)
		}
	}
}
