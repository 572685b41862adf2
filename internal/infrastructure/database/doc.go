// Package database provides the SQLite connection behind the registration ledger.
//
// It manages:
//   - Opening the database file (or an in-memory database for tests)
//   - WAL mode and busy timeout pragmas
//   - Embedded, versioned schema migrations
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// # Migrations
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. The migrations package embeds them and
// registers the filesystem at init time. Each migration runs in its own
// transaction and is recorded in schema_migrations.
package database
