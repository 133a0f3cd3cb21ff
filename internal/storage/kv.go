// Package storage persists the health data store through a small key-value
// contract with SQLite, PostgreSQL and in-memory backends.
package storage

import (
	"context"
	"fmt"
	"io"
)

// Keys and namespace of the persisted records.
const (
	DefaultNamespace = "healthmerge"
	StoreKey         = "health-data-store"
	ImportLogsKey    = "import-logs"

	// SchemaVersion is written next to every value. Version 2 is the
	// multi-source layout.
	SchemaVersion = 2
)

// KV is the persistence contract. Get reports found=false for a missing key.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Backend is a KV that holds resources.
type Backend interface {
	KV
	io.Closer
}

// Supported backend drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open connects the backend named by driver. target is a file path for
// sqlite and a DSN for postgres; memory ignores it.
func Open(ctx context.Context, driver, target, namespace string) (Backend, error) {
	switch driver {
	case DriverSQLite:
		db, err := OpenSQLite(target, namespace)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverPostgres:
		db, err := NewPostgres(ctx, target, namespace)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
