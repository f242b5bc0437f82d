package db

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":  {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("docs")},
		"notes.sql":      {Data: []byte("SELECT 0;")},
		"abc_x.sql":      {Data: []byte("SELECT 0;")},
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 10} {
		if migrations[i].Version != want {
			t.Errorf("migration %d: version %d, want %d", i, migrations[i].Version, want)
		}
	}
	if migrations[0].SQL != "SELECT 1;" {
		t.Errorf("unexpected SQL: %q", migrations[0].SQL)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	migrations, err := LoadMigrations(sub)
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != 1 {
		t.Fatalf("expected 001_init.sql first, got %+v", migrations)
	}

	for _, table := range []string{"slot_reservations", "appointments", "event_logs"} {
		if !strings.Contains(migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("init migration does not create %s", table)
		}
	}
	if !strings.Contains(migrations[0].SQL, "appointments_idempotency_key_key") {
		t.Error("idempotency constraint name must match the repository's check")
	}
}
