package migrations

import "embed"

// FS contains the embedded SQLite schema for the site database.
//
//go:embed *.sql
var FS embed.FS
