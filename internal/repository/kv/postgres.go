package kv

import (
	"context"
	"errors"

	"bahri-storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context, namespace, key string) (string, error) {
	const q = `
SELECT value
FROM device_storage
WHERE namespace = $1 AND key = $2
`
	var value string
	if err := r.pool.QueryRow(ctx, q, namespace, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *postgresRepo) Set(ctx context.Context, namespace, key, value string) error {
	const q = `
INSERT INTO device_storage (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key)
DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`
	_, err := r.pool.Exec(ctx, q, namespace, key, value)
	return err
}

func (r *postgresRepo) Delete(ctx context.Context, namespace, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM device_storage WHERE namespace = $1 AND key = $2`, namespace, key)
	return err
}
