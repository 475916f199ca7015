// Package store implements the Store Adapter (SPEC_FULL.md §6): one SQLite
// database per index, combining sqlite-vec (vector arm), FTS5 (lexical
// arm), and scalar filter columns in the same chunks table so a single
// query can combine all three. Grounded on the teacher's
// internal/storage/schema.go and chunk_writer.go, consolidated from the
// teacher's ten-table call-graph schema down to the chunks table (with its
// FTS5 and sqlite-vec companion tables) plus parse_results and metadata,
// which is all this system's scope (chunk search, not cross-reference
// graphs) needs.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/VioletCranberry/cocosearch/internal/cerr"
)

func init() {
	sqlite_vec.Auto()
}

// Capabilities reports which query arms a given index's schema supports.
// Computed once when an index's database is opened and kept for that
// connection (EnsureSchema returns the kept value), per SPEC_FULL.md
// §9's re-architecture note: callers check a struct instead of scattered
// "has the store been upgraded" flags.
type Capabilities struct {
	HasContentTSV    bool
	HasSymbolColumns bool
	HasParseResults  bool
}

// Store manages the per-index SQLite databases under a base directory.
// One *sql.DB is kept open per index name; Store is safe for concurrent
// use across goroutines (the Search Pipeline queries vector and keyword
// arms of the same index concurrently).
type Store struct {
	baseDir string

	mu    sync.Mutex
	conns map[string]*indexConn
}

type indexConn struct {
	db   *sql.DB
	caps Capabilities
}

// Open returns a Store rooted at baseDir. baseDir is created if missing.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create base dir: %w", err)
	}
	return &Store{baseDir: baseDir, conns: make(map[string]*indexConn)}, nil
}

func (s *Store) dbPath(index string) string {
	return filepath.Join(s.baseDir, index+".db")
}

// EnsureSchema opens (creating if needed) the database for index and
// brings its schema up to date. dimensions fixes the vector arm's width;
// once created, an index's dimension cannot change without DropIndex.
func (s *Store) EnsureSchema(index string, dimensions int) (Capabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.openLocked(index, dimensions)
	if err != nil {
		return Capabilities{}, err
	}
	return conn.caps, nil
}

// conn returns the open connection for index, requiring EnsureSchema (or
// an operation that implies it) to have run first.
func (s *Store) conn(index string) (*indexConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[index]
	if ok {
		return c, nil
	}
	if _, err := os.Stat(s.dbPath(index)); err != nil {
		return nil, cerr.NewUnknownIndexError(index)
	}
	return s.openLocked(index, 0)
}

// openLocked opens (or returns the cached handle for) index's database. If
// dimensions > 0 and the database is new, the vector arm is created with
// that width. Caller must hold s.mu.
func (s *Store) openLocked(index string, dimensions int) (*indexConn, error) {
	if c, ok := s.conns[index]; ok {
		return c, nil
	}

	path := s.dbPath(index)
	_, statErr := os.Stat(path)
	isNew := statErr != nil

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", cerr.ErrStoreUnavailable, index, err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver: one writer at a time per file

	if isNew {
		if dimensions <= 0 {
			dimensions = 384
		}
		if err := createSchema(db, dimensions); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: create schema for %s: %v", cerr.ErrSchemaMismatch, index, err)
		}
	} else if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate schema for %s: %v", cerr.ErrSchemaMismatch, index, err)
	}

	caps, err := computeCapabilities(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	conn := &indexConn{db: db, caps: caps}
	s.conns[index] = conn
	return conn, nil
}

// Capabilities reports the query arms available for index, opening it
// (read-only, schema unchanged) if it is not already open.
func (s *Store) Capabilities(index string) (Capabilities, error) {
	conn, err := s.conn(index)
	if err != nil {
		return Capabilities{}, err
	}
	return conn.caps, nil
}

// ListIndexes enumerates every index with a database under baseDir.
func (s *Store) ListIndexes() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("store: list indexes: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".db"))
	}
	return names, nil
}

// DropIndex closes and deletes index's database entirely.
func (s *Store) DropIndex(index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.conns[index]; ok {
		c.db.Close()
		delete(s.conns, index)
	}

	path := s.dbPath(index)
	if _, err := os.Stat(path); err != nil {
		return cerr.NewUnknownIndexError(index)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("store: drop index %s: %w", index, err)
	}
	return nil
}

// Close closes every open database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for name, c := range s.conns {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.conns, name)
	}
	return firstErr
}

func computeCapabilities(db *sql.DB) (Capabilities, error) {
	tables := map[string]bool{}
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type IN ('table','view')`)
	if err != nil {
		return Capabilities{}, fmt.Errorf("store: inspect schema: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Capabilities{}, err
		}
		tables[name] = true
	}
	if err := rows.Err(); err != nil {
		return Capabilities{}, err
	}

	return Capabilities{
		HasContentTSV:    tables["chunks_fts"],
		HasSymbolColumns: tables["chunks"],
		HasParseResults:  tables["parse_results"],
	}, nil
}
