package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a KV backed by the kv_store table.
type Postgres struct {
	Pool      *pgxpool.Pool
	namespace string
}

// NewPostgres creates a connection pool and verifies it.
func NewPostgres(ctx context.Context, dsn, namespace string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{Pool: pool, namespace: namespace}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.Pool.Close()
	return nil
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.Pool.QueryRow(ctx,
		`SELECT value FROM kv_store WHERE namespace = $1 AND key = $2`,
		p.namespace, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.Pool.Exec(ctx,
		`INSERT INTO kv_store (namespace, key, value, schema_version, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (namespace, key) DO UPDATE SET
		   value = EXCLUDED.value,
		   schema_version = EXCLUDED.schema_version,
		   updated_at = EXCLUDED.updated_at`,
		p.namespace, key, value, SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.Pool.Exec(ctx,
		`DELETE FROM kv_store WHERE namespace = $1 AND key = $2`,
		p.namespace, key,
	); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
