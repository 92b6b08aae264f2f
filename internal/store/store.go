package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite export of one module map: its modules, the require
// edges between them and snapshot metadata.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS modules (
  id              INTEGER PRIMARY KEY,
  virtual_path    TEXT NOT NULL UNIQUE,
  name            TEXT NOT NULL,
  class_name      TEXT NOT NULL,
  real_path       TEXT,
  kind            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS requires (
  id              INTEGER PRIMARY KEY,
  from_path       TEXT NOT NULL,
  to_path         TEXT,
  expression      TEXT NOT NULL,
  line            INTEGER,
  col             INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_modules_real_path ON modules(real_path);
CREATE INDEX IF NOT EXISTS idx_modules_class ON modules(class_name);
CREATE INDEX IF NOT EXISTS idx_requires_from ON requires(from_path);
CREATE INDEX IF NOT EXISTS idx_requires_to ON requires(to_path);
`
