package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConnectRejectsBadDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz")
	if err == nil || !strings.Contains(err.Error(), "device storage dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestConnectTagsApplication(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	if strings.Contains(dsn, "application_name") {
		t.Skip("TEST_DB_DSN sets its own application_name")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	var name string
	if err := pool.QueryRow(ctx, "SELECT current_setting('application_name')").Scan(&name); err != nil {
		t.Fatalf("query application_name: %v", err)
	}
	if name != applicationName {
		t.Fatalf("expected %q, got %q", applicationName, name)
	}
}

func TestOpenSQLiteCreatesProfileDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles", "default.db")
	sqlDB, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sqlDB.Close()
	if err := sqlDB.PingContext(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("profile dir missing: %v", err)
	}
}
