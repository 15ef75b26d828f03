// Package database provides SQLite persistence for Relay Bridge.
//
// This package manages:
//   - Database connection lifecycle (open, close, health checks)
//   - WAL mode configuration for concurrent read access
//   - Schema bootstrap (the snapshots key/value table)
//   - Connection pooling tuned for SQLite's single-writer model
//
// The bridge persists its registries as whole-collection JSON snapshots
// rather than normalised rows. Collections are bounded (25 devices,
// a handful of operators) so a full rewrite per mutation is simple and
// fast, and recovery is a single read per collection at startup.
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        "data/relaybridge.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
package database
