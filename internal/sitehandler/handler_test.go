package sitehandler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/sanctuaryweb/site/internal/webassets"
)

func testAssets() fstest.MapFS {
	return fstest.MapFS{
		"site.css":      {Data: []byte("body{}")},
		"favicon.svg":   {Data: []byte("<svg/>")},
		"robots.txt":    {Data: []byte("User-agent: *\n")},
		"notes.txt":     {Data: []byte("hello")},
		"img/emu.webp":  {Data: []byte("webp")},
		"img/index.txt": {Data: []byte("dir file")},
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := New(Options{Assets: testAssets()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func get(h http.Handler, method, path string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("nil assets: err = %v", err)
	}
	if _, err := New(Options{Assets: fstest.MapFS{"other.css": {Data: []byte("x")}}}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("missing stylesheet: err = %v", err)
	}
}

func TestNew_EmbeddedAssets(t *testing.T) {
	h, err := New(Options{Assets: webassets.StaticFS()})
	if err != nil {
		t.Fatalf("New with embedded assets: %v", err)
	}
	if rec := get(h, http.MethodGet, "/assets/site.css"); rec.Code != http.StatusOK {
		t.Fatalf("site.css status = %d", rec.Code)
	}
}

func TestServeHTTP_Assets(t *testing.T) {
	h := newTestHandler(t)
	tests := []struct {
		path   string
		status int
		cache  string
		body   string
	}{
		{"/assets/site.css", http.StatusOK, "public, max-age=86400", "body{}"},
		{"/assets/img/emu.webp", http.StatusOK, "public, max-age=86400", "webp"},
		{"/assets/notes.txt", http.StatusOK, "public, max-age=3600", "hello"},
		{"/robots.txt", http.StatusOK, "public, max-age=3600", "User-agent"},
		{"/favicon.svg", http.StatusOK, "public, max-age=86400", "<svg/>"},
		{"/notes.txt", http.StatusNotFound, "no-store", ""},
		{"/assets/", http.StatusNotFound, "no-store", ""},
		{"/assets/img", http.StatusNotFound, "no-store", ""},
		{"/assets/../site.css", http.StatusNotFound, "no-store", ""},
		{"/assets/img/./emu.webp", http.StatusNotFound, "no-store", ""},
		{"/assets/missing.css", http.StatusNotFound, "no-store", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.URL.Path = tt.path
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get("Cache-Control"); got != tt.cache {
				t.Fatalf("Cache-Control = %q, want %q", got, tt.cache)
			}
			if tt.body != "" && !strings.Contains(rec.Body.String(), tt.body) {
				t.Fatalf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestServeHTTP_ETag(t *testing.T) {
	h := newTestHandler(t)
	rec := get(h, http.MethodGet, "/assets/site.css")
	etag := rec.Header().Get("ETag")
	if etag == "" || !strings.HasPrefix(etag, `"`) {
		t.Fatalf("ETag = %q", etag)
	}
	if other := get(h, http.MethodGet, "/assets/notes.txt").Header().Get("ETag"); other == etag {
		t.Fatal("different files share an ETag")
	}

	rec = get(h, http.MethodGet, "/assets/site.css", "If-None-Match", etag)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("revalidation status = %d, want 304", rec.Code)
	}
}

func TestServeHTTP_Methods(t *testing.T) {
	h := newTestHandler(t)
	if rec := get(h, http.MethodHead, "/assets/site.css"); rec.Code != http.StatusOK {
		t.Fatalf("HEAD status = %d", rec.Code)
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := get(h, m, "/assets/site.css")
		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, HEAD" {
			t.Fatalf("%s: status=%d allow=%q", m, rec.Code, rec.Header().Get("Allow"))
		}
		if rec.Body.Len() != 0 {
			t.Fatalf("%s: body = %q", m, rec.Body.String())
		}
	}
}

func TestNotFound_Themed(t *testing.T) {
	h := newTestHandler(t)
	rec := get(http.HandlerFunc(h.NotFound), http.MethodGet, "/ambassadors/nobody")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<title>Not Found | Sanctuary</title>", `href="/assets/site.css"`, `href="/ambassadors"`} {
		if !strings.Contains(body, want) {
			t.Errorf("404 page missing %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestAccessors(t *testing.T) {
	h := newTestHandler(t)
	if h.AssetPattern() != "/assets/*" {
		t.Fatalf("pattern = %q", h.AssetPattern())
	}
	files := h.RootFiles()
	files[0] = "mutated"
	if h.RootFiles()[0] == "mutated" {
		t.Fatal("RootFiles exposes internal slice")
	}
}

func TestCacheControlForFile(t *testing.T) {
	o := &Options{}
	o.setDefaults()
	for name, want := range map[string]string{
		"site.css":   o.AssetCacheControl,
		"logo.PNG":   o.AssetCacheControl,
		"font.woff2": o.AssetCacheControl,
		"robots.txt": o.OtherCacheControl,
		"LICENSE":    o.OtherCacheControl,
	} {
		if got := cacheControlForFile(name, o); got != want {
			t.Errorf("%s: %q, want %q", name, got, want)
		}
	}
}
