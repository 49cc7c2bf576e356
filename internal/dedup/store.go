// Package dedup persists the set of already-processed session paths so a
// daemon restart never replays old sessions. The set is mirrored in
// memory; the hot-path membership check never touches the database.
package dedup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"voxd/internal/logging"
)

// Store implements types.DedupStore on SQLite.
type Store struct {
	db     *sql.DB
	dbPath string

	mu        sync.RWMutex
	processed map[string]bool
}

// NewStore opens (or creates) the database at path and loads the
// processed set into memory.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path, processed: make(map[string]bool)}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS processed_sessions (
		path TEXT PRIMARY KEY,
		marked_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT path FROM processed_sessions`)
	if err != nil {
		return fmt.Errorf("failed to load processed set: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return err
		}
		s.processed[p] = true
	}
	return rows.Err()
}

// Contains reports whether the session path was already processed.
func (s *Store) Contains(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed[path]
}

// MarkProcessed records a session path as handled. Idempotent: marking
// an already-marked path is a no-op.
func (s *Store) MarkProcessed(path string) error {
	s.mu.Lock()
	if s.processed[path] {
		s.mu.Unlock()
		return nil
	}
	s.processed[path] = true
	s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO processed_sessions (path, marked_at) VALUES (?, ?)`,
		path, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	logging.Get(logging.CategoryStore).Debug("marked processed: %s", path)
	return nil
}

// Evict removes a path from the processed set. Called when a session
// folder is deleted so a reused path can be processed again.
func (s *Store) Evict(path string) error {
	s.mu.Lock()
	delete(s.processed, path)
	s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM processed_sessions WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to evict: %w", err)
	}
	return nil
}

// Len returns the number of processed paths.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processed)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
