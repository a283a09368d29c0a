package sitehandler

import (
	"io/fs"
	"testing"
	"testing/fstest"
)

func TestResolveAsset(t *testing.T) {
	fsys := fstest.MapFS{
		"site.css":              {Data: []byte("body{}")},
		".well-known/ok.txt":    {Data: []byte("ok")},
		"img/georgie.webp":      {Data: []byte("x")},
		"img/...":               {Data: []byte("three dots")},
		"img/stompy/portrait.j": {Data: []byte("x")},
	}

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/assets/site.css", "site.css", true},
		{"/assets/img/georgie.webp", "img/georgie.webp", true},
		{"/assets/.well-known/ok.txt", ".well-known/ok.txt", true},
		{"/assets/img/...", "img/...", true},
		{"/assets/", "", false},
		{"/assets/img", "", false},
		{"/assets/img/../site.css", "", false},
		{"/assets/./site.css", "", false},
		{"/assets/img/.", "", false},
		{"/assets/img\\georgie.webp", "", false},
		{"/assets/site.css\x00", "", false},
		{"/assets//site.css", "", false},
		{"/other/site.css", "", false},
		{"/assets/missing.css", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := resolveAsset(tt.path, "/assets/", fsys)
			if got != tt.want || ok != tt.ok {
				t.Errorf("resolveAsset(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func FuzzDotSegment(f *testing.F) {
	for _, s := range []string{"img/./x", "img/../x", "./x", "x/.", "..", "x/y", "..."} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, p string) {
		got := dotSegment(p)
		if got && p != "." && fs.ValidPath(p) {
			t.Errorf("dotSegment(%q) = true but fs.ValidPath accepts it", p)
		}
	})
}
