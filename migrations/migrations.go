// Package migrations embeds the SQL schema for the Postgres-backed stores.
package migrations

import "embed"

// FS holds the numbered golang-migrate files.
//
//go:embed *.sql
var FS embed.FS
