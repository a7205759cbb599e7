// Package database provides the SQLite connection behind the publish
// journal.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Additive schema migrations read from an fs.FS
//   - Health checks
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are embedded
// into the binary. Only .up.sql files are applied; the .down.sql twin is
// for manual rollback. New columns must be nullable or carry a default.
package database
