// Package database provides the SQLite connection used for the vacuum
// snapshot store and state history.
//
// Databases open in WAL mode with a busy timeout and a single connection,
// matching SQLite's one-writer model. Schema changes are versioned .sql
// files embedded into the binary by the migrations package and applied by
// Migrate at startup.
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or defaulted, and
// every .up.sql should ship with a .down.sql for development rollbacks.
package database
