package sitehandler

import (
	"io/fs"
	"strings"
)

// resolveAsset maps a URL path under prefix to a file name in fsys.
// Directories, dot segments and anything that is not a plain relative
// name are rejected.
func resolveAsset(urlPath, prefix string, fsys fs.FS) (string, bool) {
	if !strings.HasPrefix(urlPath, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(urlPath, prefix)
	if name == "" || strings.ContainsAny(name, "\x00\\") || dotSegment(name) {
		return "", false
	}
	if !existsFile(fsys, name) {
		return "", false
	}
	return name, true
}

// dotSegment reports whether any segment of name is "." or "..".
func dotSegment(name string) bool {
	for seg := range strings.SplitSeq(name, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
