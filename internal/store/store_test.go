package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/relay-bridge/internal/infrastructure/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(database.Config{
		Path:        dbPath,
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return New(db)
}

type testRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestSaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := []testRecord{
		{ID: "sensor_01", Name: "Garage"},
		{ID: "sensor_02", Name: "Greenhouse"},
	}

	if err := s.Save(ctx, "devices", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var got []testRecord
	found, err := s.Load(ctx, "devices", &got)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("Load() found = false, want true")
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)

	var got []testRecord
	found, err := s.Load(context.Background(), "nonexistent", &got)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("Load() found = true for missing snapshot, want false")
	}
	if got != nil {
		t.Errorf("Load() populated target for missing snapshot: %+v", got)
	}
}

func TestSaveReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "devices", []testRecord{{ID: "a", Name: "A"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "devices", []testRecord{{ID: "b", Name: "B"}}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	var got []testRecord
	found, err := s.Load(ctx, "devices", &got)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("Load() found = false, want true")
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Load() = %+v, want single record b", got)
	}
}

func TestSnapshotsIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "devices", []testRecord{{ID: "d1"}}); err != nil {
		t.Fatalf("Save(devices) error = %v", err)
	}
	if err := s.Save(ctx, "users", []testRecord{{ID: "u1"}}); err != nil {
		t.Fatalf("Save(users) error = %v", err)
	}

	var devices, users []testRecord
	if _, err := s.Load(ctx, "devices", &devices); err != nil {
		t.Fatalf("Load(devices) error = %v", err)
	}
	if _, err := s.Load(ctx, "users", &users); err != nil {
		t.Fatalf("Load(users) error = %v", err)
	}

	if len(devices) != 1 || devices[0].ID != "d1" {
		t.Errorf("devices = %+v, want [d1]", devices)
	}
	if len(users) != 1 || users[0].ID != "u1" {
		t.Errorf("users = %+v, want [u1]", users)
	}
}
