package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite is a KV stored in a single SQLite file.
type SQLite struct {
	db        *sql.DB
	namespace string
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path, namespace string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv_store (
		namespace      TEXT NOT NULL,
		key            TEXT NOT NULL,
		value          BLOB NOT NULL,
		schema_version INTEGER NOT NULL,
		updated_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (namespace, key)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}

	return &SQLite{db: db, namespace: namespace}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_store (namespace, key, value, schema_version, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (namespace, key) DO UPDATE SET
		   value = excluded.value,
		   schema_version = excluded.schema_version,
		   updated_at = excluded.updated_at`,
		s.namespace, key, value, SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
