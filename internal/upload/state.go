package upload

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Sent is one archive the server accepted for a source.
type Sent struct {
	Path       string
	Source     string
	Size       int64
	Hash       string
	Records    int
	UploadedAt time.Time
}

// Same reports whether the archive on disk still matches what was sent.
func (s *Sent) Same(size int64, hash string) bool {
	return s != nil && s.Size == size && s.Hash == hash
}

// StateDB remembers the last archive sent per (path, source) so unchanged
// exports are not re-sent.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens or creates dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	// uploaded_at is unix seconds.
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sent_archives (
		path        TEXT NOT NULL,
		source      TEXT NOT NULL,
		size        INTEGER NOT NULL,
		hash        TEXT NOT NULL,
		records     INTEGER NOT NULL DEFAULT 0,
		uploaded_at INTEGER NOT NULL,
		PRIMARY KEY (path, source)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}
	return &StateDB{db: db}, nil
}

const sentColumns = `path, source, size, hash, records, uploaded_at`

func scanSent(row interface{ Scan(...any) error }) (*Sent, error) {
	var s Sent
	var at int64
	if err := row.Scan(&s.Path, &s.Source, &s.Size, &s.Hash, &s.Records, &at); err != nil {
		return nil, err
	}
	s.UploadedAt = time.Unix(at, 0).UTC()
	return &s, nil
}

// Lookup returns the last upload of path to source, or nil if there is none.
func (s *StateDB) Lookup(ctx context.Context, path, source string) (*Sent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sentColumns+` FROM sent_archives WHERE path = ? AND source = ?`, path, source)
	sent, err := scanSent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", path, err)
	}
	return sent, nil
}

// Record stores a successful upload, replacing any earlier one for the same
// path and source.
func (s *StateDB) Record(ctx context.Context, sent Sent) error {
	if sent.UploadedAt.IsZero() {
		sent.UploadedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sent_archives (`+sentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		sent.Path, sent.Source, sent.Size, sent.Hash, sent.Records, sent.UploadedAt.Unix())
	if err != nil {
		return fmt.Errorf("recording %s: %w", sent.Path, err)
	}
	return nil
}

// History lists uploads, most recent first. A non-positive limit lists all.
func (s *StateDB) History(ctx context.Context, limit int) ([]Sent, error) {
	q := `SELECT ` + sentColumns + ` FROM sent_archives ORDER BY uploaded_at DESC, path`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Sent
	for rows.Next() {
		sent, err := scanSent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		out = append(out, *sent)
	}
	return out, rows.Err()
}

func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile returns the hex SHA-256 of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
