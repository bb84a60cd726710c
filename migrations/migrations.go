// Package migrations embeds the Postgres schema applied when AUTO_MIGRATE is set.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
