// Package migrations embeds the SQL schema migrations for the importer.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
