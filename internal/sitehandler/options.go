package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/sanctuaryweb/site/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

type Options struct {
	Logger log.Logger
	// Assets holds the files served under AssetPrefix. RootFiles from the
	// same FS are also served at "/<name>".
	Assets      fs.FS
	AssetPrefix string   // default: "/assets/"
	RootFiles   []string // default: robots.txt, favicon.svg
	// Stylesheet must exist in Assets; the layout links to it.
	Stylesheet string // default: "site.css"

	AssetCacheControl string // default: "public, max-age=86400"
	OtherCacheControl string // default: "public, max-age=3600"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.AssetPrefix == "" {
		o.AssetPrefix = "/assets/"
	}
	if o.RootFiles == nil {
		o.RootFiles = []string{"robots.txt", "favicon.svg"}
	}
	if o.Stylesheet == "" {
		o.Stylesheet = "site.css"
	}
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=86400"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=3600"
	}
}

func (o *Options) validate() error {
	if o.Assets == nil {
		return fmt.Errorf("%w: Assets is nil", ErrInvalidOptions)
	}
	if !existsFile(o.Assets, o.Stylesheet) {
		return fmt.Errorf("%w: missing %q in assets", ErrInvalidOptions, o.Stylesheet)
	}
	return nil
}
