package database

import (
	"context"
	"fmt"
)

// snapshotSchema defines the single key/value table used for persistence.
//
// The bridge stores whole-collection JSON snapshots (devices, users,
// pending devices, pending users) keyed by name. Collections are small
// (25 devices max) so full rewrites are cheaper than row-level diffs.
const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name       TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// ensureSchema creates the snapshot table if it does not exist.
// Called once during Open; idempotent.
func (db *DB) ensureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}
	return nil
}
