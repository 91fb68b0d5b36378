package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/nainya/grantdraft/pkg/version"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS versions (
	seq        INTEGER PRIMARY KEY,
	proposal   TEXT NOT NULL,
	rationale  TEXT NOT NULL,
	timestamp  REAL NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLite stores versions as rows keyed by their version number
type SQLite struct {
	mu     sync.Mutex
	db     *sql.DB
	stored int
	loaded bool
}

// OpenSQLite opens (or creates) the database at path
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		sqliteSchema,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise database: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

// Load reads all versions ordered by number
func (s *SQLite) Load() ([]version.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT seq, proposal, rationale, timestamp, created_at, updated_at FROM versions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var entries []version.Entry
	for rows.Next() {
		var (
			seq      int
			proposal string
			e        version.Entry
		)
		if err := rows.Scan(&seq, &proposal, &e.Rationale, &e.Timestamp, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		if seq != len(entries)+1 {
			return nil, fmt.Errorf("version %d missing from database", len(entries)+1)
		}
		if err := json.Unmarshal([]byte(proposal), &e.Proposal); err != nil {
			return nil, fmt.Errorf("decode version %d: %w", seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read versions: %w", err)
	}

	s.stored = len(entries)
	s.loaded = true
	return entries, nil
}

// Persist inserts every version not stored yet in one transaction
func (s *SQLite) Persist(history []version.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}
	if s.stored >= len(history) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO versions (seq, proposal, rationale, timestamp, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := s.stored; i < len(history); i++ {
		e := history[i]
		proposal, err := json.Marshal(e.Proposal)
		if err != nil {
			return fmt.Errorf("encode version %d: %w", i+1, err)
		}
		if _, err := stmt.Exec(i+1, string(proposal), e.Rationale, e.Timestamp, e.CreatedAt, e.UpdatedAt); err != nil {
			return fmt.Errorf("insert version %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.stored = len(history)
	return nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}
