// Package migrations holds the SQL schema migrations, embedded for the
// worker and migrate binaries.
package migrations

import "embed"

// FS contains every *.up.sql and *.down.sql file of this directory
//
//go:embed *.sql
var FS embed.FS
