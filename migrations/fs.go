// Package migrations embeds the SQL schema migrations for both storage
// backends. Each dialect keeps its own subdirectory.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
