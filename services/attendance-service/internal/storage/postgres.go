package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/ecochurch/libs/db"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS ecochurch_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// PostgresMedium stores each collection as one row, so a replace is a single statement.
type PostgresMedium struct {
	pool *db.Pool
}

func NewPostgresMedium(ctx context.Context, pool *db.Pool) (*PostgresMedium, error) {
	if err := pool.EnsureSchema(ctx, postgresSchema); err != nil {
		return nil, err
	}
	return &PostgresMedium{pool: pool}, nil
}

func (m *PostgresMedium) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := m.pool.QueryRow(ctx, `SELECT value FROM ecochurch_kv WHERE key = $1`, key).Scan(&value)
	if IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (m *PostgresMedium) Set(ctx context.Context, key, value string) error {
	_, err := m.pool.Exec(ctx, `
		INSERT INTO ecochurch_kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

func (m *PostgresMedium) Delete(ctx context.Context, key string) error {
	_, err := m.pool.Exec(ctx, `DELETE FROM ecochurch_kv WHERE key = $1`, key)
	return err
}

func (m *PostgresMedium) Ping(ctx context.Context) error {
	return db.ReadyCheck(m.pool)(ctx)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
