package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/relay-bridge/internal/infrastructure/database"
)

// Store persists named JSON snapshots in the database.
//
// Each snapshot is a whole collection serialised as one JSON document.
// Writes are upserts; a collection is always replaced atomically in a
// single statement.
//
// Thread Safety:
//   - Safe for concurrent use; the underlying pool serialises writers.
type Store struct {
	db *database.DB
}

// New creates a snapshot store backed by the given database.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Save serialises v to JSON and upserts it under the given snapshot name.
func (s *Store) Save(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling snapshot %q: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, name, string(data))
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", name, err)
	}

	return nil
}

// Load reads the named snapshot and unmarshals it into v.
//
// Returns false with a nil error when no snapshot exists yet, so first
// runs start from empty collections without special-casing.
func (s *Store) Load(ctx context.Context, name string, v any) (bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM snapshots WHERE name = ?", name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading snapshot %q: %w", name, err)
	}

	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("unmarshaling snapshot %q: %w", name, err)
	}

	return true, nil
}
