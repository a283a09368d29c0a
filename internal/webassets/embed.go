// Package webassets embeds the stylesheet, icons and robots.txt served
// under /assets and at the site root.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed static
var embedded embed.FS

// StaticFS is rooted at static/, so "site.css" names static/site.css.
func StaticFS() fs.FS {
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		panic(fmt.Errorf("webassets: static subfs: %w", err))
	}
	return sub
}
