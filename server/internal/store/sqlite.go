package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a KV backed by a single SQLite table.
// SQLite allows one writer at a time, so the pool is capped at one
// connection and SetMany runs inside a transaction.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the SQLite database at path and applies the schema.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect %q: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: %q: %w", p, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get decodes the value stored under key into dst.
func (s *SQLite) Get(key string, dst any) (bool, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &PersistenceError{Op: "get", Key: key, Err: err}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, &PersistenceError{Op: "get", Key: key, Err: err}
	}
	return true, nil
}

// Set stores or replaces the value for key.
func (s *SQLite) Set(key string, v any) error {
	return s.SetMany(map[string]any{key: v})
}

// SetMany writes all entries in one transaction.
func (s *SQLite) SetMany(entries map[string]any) error {
	encoded, err := encodeAll(entries)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &PersistenceError{Op: "set", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return &PersistenceError{Op: "set", Err: err}
	}
	defer stmt.Close()

	// Sorted so concurrent batches lock rows in the same order.
	keys := make([]string, 0, len(encoded))
	for k := range encoded {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := s.now().UTC().UnixNano()
	for _, k := range keys {
		if _, err := stmt.Exec(k, encoded[k], now); err != nil {
			return &PersistenceError{Op: "set", Key: k, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "set", Err: err}
	}
	return nil
}

// Sync checkpoints the WAL into the main database file.
func (s *SQLite) Sync() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		return &PersistenceError{Op: "sync", Err: err}
	}
	return nil
}
