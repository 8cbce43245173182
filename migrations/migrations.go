// Package migrations embeds the SQL that builds the PostgreSQL election fixture.
package migrations

import "embed"

// FS holds the versioned up/down migration files.
//
//go:embed *.sql
var FS embed.FS
