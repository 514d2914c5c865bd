// Package migrations embeds the SQL schema migrations of the postgres store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
