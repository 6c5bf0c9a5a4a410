// Package migrations embeds the PostgreSQL schema.
package migrations

import "embed"

// FS holds the ordered *.sql migrations applied by `lotledger migrate`.
//
//go:embed *.sql
var FS embed.FS
