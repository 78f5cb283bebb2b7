// Package appfs holds the files shipped inside the binaries: SQL migrations, email templates and seed data.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* seed/*.json
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	SeedDir           = "seed"
)
