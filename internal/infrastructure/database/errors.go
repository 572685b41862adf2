package database

import "errors"

var (
	// ErrNoDownMigration is returned by MigrateDown when the latest migration
	// has no .down.sql file.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")

	// ErrMigrationMissing is returned when schema_migrations references a
	// version that is not embedded in the binary.
	ErrMigrationMissing = errors.New("database: applied migration not found")
)
