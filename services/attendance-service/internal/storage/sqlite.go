package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteMedium is the single-file embedded backend.
type SQLiteMedium struct {
	db *sql.DB
}

func OpenSQLiteMedium(ctx context.Context, dsn string) (*SQLiteMedium, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	conn.SetMaxOpenConns(1)
	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ecochurch_kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteMedium{db: conn}, nil
}

func (m *SQLiteMedium) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := m.db.QueryRowContext(ctx, `SELECT value FROM ecochurch_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (m *SQLiteMedium) Set(ctx context.Context, key, value string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO ecochurch_kv (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

func (m *SQLiteMedium) Delete(ctx context.Context, key string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM ecochurch_kv WHERE key = ?`, key)
	return err
}

func (m *SQLiteMedium) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *SQLiteMedium) Close() error {
	return m.db.Close()
}
