package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestApplySQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "storage.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	if err := ApplySQLite(ctx, db); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplySQLite(ctx, db); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var name string
	if err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'device_storage'`).Scan(&name); err != nil {
		t.Fatalf("device_storage table missing: %v", err)
	}
}
