// Package migrations embeds the goose SQL migrations of the metadata store,
// one directory per supported dialect.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS

//go:embed sqlite/*.sql
var SQLite embed.FS
