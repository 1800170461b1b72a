package database

import "embed"

// MigrationsDir is the goose directory inside CatalogMigrations
const MigrationsDir = "migrations"

// CatalogMigrations holds the plugin catalog schema, applied by RunMigrations.
//
//go:embed migrations/*.sql
var CatalogMigrations embed.FS
