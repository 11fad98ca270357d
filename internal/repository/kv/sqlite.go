package kv

import (
	"context"
	"database/sql"
	"errors"

	"bahri-storefront/internal/domain"
)

type sqliteRepo struct {
	db *sql.DB
}

// NewSQLite returns a Repository over a database opened with the "sqlite"
// driver (modernc.org/sqlite) and migrated with migrate.ApplySQLite.
func NewSQLite(db *sql.DB) Repository {
	return &sqliteRepo{db: db}
}

func (r *sqliteRepo) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM device_storage WHERE namespace = ? AND key = ?`, namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *sqliteRepo) Set(ctx context.Context, namespace, key, value string) error {
	const q = `
INSERT INTO device_storage (namespace, key, value, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (namespace, key)
DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
`
	_, err := r.db.ExecContext(ctx, q, namespace, key, value)
	return err
}

func (r *sqliteRepo) Delete(ctx context.Context, namespace, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM device_storage WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}
