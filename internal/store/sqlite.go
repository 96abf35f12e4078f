package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	dirPermissions = 0o750

	schema = `
	CREATE TABLE IF NOT EXISTS flags (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	);`
)

// SQLiteStore keeps flags in a single SQLite table keyed by namespace and key.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	namespace string
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
}

// OpenSQLite opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database. timeout bounds every query when > 0.
func OpenSQLite(path string, timeout time.Duration) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:        db,
		path:      path,
		namespace: Namespace,
		timeout:   timeout,
	}

	ctx, cancel := s.withTimeout(context.Background())
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// GetFlag reads key from the flags table.
func (s *SQLiteStore) GetFlag(ctx context.Context, key Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM flags WHERE namespace = ? AND key = ?",
		s.namespace, string(key),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("query flag %s: %w", key, err)
	}

	v, err := decode(raw)
	if err != nil {
		return false, fmt.Errorf("flag %s: %w", key, err)
	}

	return v, nil
}

// SetFlag upserts key.
func (s *SQLiteStore) SetFlag(ctx context.Context, key Key, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flags (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, string(key), encode(value), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write flag %s: %w", key, err)
	}

	return nil
}

// setRaw writes an arbitrary record. Tests use it to plant corrupt values.
func (s *SQLiteStore) setRaw(ctx context.Context, key Key, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flags (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`,
		s.namespace, string(key), raw, time.Now().Unix(),
	)
	return err
}

// Close releases the database handle. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
