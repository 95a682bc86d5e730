package migrations

import "embed"

// FS contains the embedded SQLite migrations of the photo index.
//
//go:embed *.sql
var FS embed.FS
