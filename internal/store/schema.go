package store

import (
	"database/sql"
	"fmt"
	"time"
)

// currentSchemaVersion bumps whenever createSchema's DDL changes in a way
// migrateSchema must react to.
const currentSchemaVersion = "1"

// createSchema builds a fresh index database: the chunks table (content
// address, symbol metadata, embedding), its FTS5 shadow, the sqlite-vec
// vector table, and the parse_results and metadata tables. Grounded on the
// teacher's internal/storage/schema.go transaction-then-virtual-tables
// ordering (FTS5 and vec0 virtual tables cannot be created inside the same
// transaction as ordinary DDL on some SQLite builds).
func createSchema(db *sql.DB, dimensions int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`PRAGMA foreign_keys = ON`,
		createChunksTable,
		createParseResultsTable,
		createMetadataTable,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	for i, idx := range chunkIndexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("create index %d: %w", i, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`
		INSERT INTO metadata (key, value, updated_at) VALUES
			('schema_version', ?, ?),
			('embedding_dimensions', ?, ?)
	`, currentSchemaVersion, now, fmt.Sprint(dimensions), now)
	if err != nil {
		return fmt.Errorf("bootstrap metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}

	if _, err := db.Exec(createChunksFTSTable); err != nil {
		return fmt.Errorf("create chunks_fts: %w", err)
	}
	if err := createFTSTriggers(db); err != nil {
		return err
	}
	if err := createVectorTable(db, dimensions); err != nil {
		return err
	}

	return nil
}

// migrateSchema brings an existing database up to currentSchemaVersion. No
// migrations exist yet (schema version 1 is the only version ever
// shipped); this is the hook future versions extend.
func migrateSchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if version != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version %q (expected %q): reindex required", version, currentSchemaVersion)
	}
	return nil
}

func schemaVersion(db *sql.DB) (string, error) {
	var version string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&version)
	if err != nil {
		return "", fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func embeddingDimensions(db *sql.DB) (int, error) {
	var dims int
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = 'embedding_dimensions'`).Scan(&dims)
	if err != nil {
		return 0, fmt.Errorf("read embedding dimensions: %w", err)
	}
	return dims, nil
}

const createChunksTable = `
CREATE TABLE chunks (
    chunk_id        TEXT PRIMARY KEY,   -- sha256(file_path, start_byte, end_byte)
    file_path       TEXT NOT NULL,
    language_id     TEXT NOT NULL DEFAULT '',
    symbol_type     TEXT NOT NULL DEFAULT '',   -- function, method, class, type, ''
    symbol_name     TEXT NOT NULL DEFAULT '',
    symbol_signature TEXT NOT NULL DEFAULT '',
    block_type      TEXT NOT NULL DEFAULT '',
    hierarchy       TEXT NOT NULL DEFAULT '',
    start_byte      INTEGER NOT NULL,
    end_byte        INTEGER NOT NULL,
    start_line      INTEGER NOT NULL DEFAULT 0,
    end_line        INTEGER NOT NULL DEFAULT 0,
    content_tokens  TEXT NOT NULL,      -- lexical.Tokenize output, mirrored into chunks_fts
    embedding       BLOB NOT NULL,      -- little-endian float32[], mirrored into chunks_vec
    file_content_hash TEXT NOT NULL,    -- incremental-indexing change detection
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
)
`

const createChunksFTSTable = `
CREATE VIRTUAL TABLE chunks_fts USING fts5(
    chunk_id UNINDEXED,
    content_tokens,
    tokenize = "unicode61"
)
`

const createParseResultsTable = `
CREATE TABLE parse_results (
    file_path     TEXT PRIMARY KEY,
    language_id   TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,   -- ok, partial, error, no_grammar
    error_count   INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    recorded_at   TEXT NOT NULL
)
`

const createMetadataTable = `
CREATE TABLE metadata (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

var chunkIndexes = []string{
	"CREATE INDEX idx_chunks_file_path ON chunks(file_path)",
	"CREATE INDEX idx_chunks_language_id ON chunks(language_id)",
	"CREATE INDEX idx_chunks_symbol_type ON chunks(symbol_type)",
	"CREATE INDEX idx_chunks_symbol_name ON chunks(symbol_name)",
	"CREATE INDEX idx_parse_results_language_id ON parse_results(language_id)",
	"CREATE INDEX idx_parse_results_status ON parse_results(status)",
}

// createFTSTriggers keeps chunks_fts in sync with chunks.content_tokens, the
// same delete-then-insert pattern as the teacher's files_fts triggers
// (internal/storage/schema.go createFTSTriggers), adapted to a table keyed
// by chunk_id instead of file_path.
func createFTSTriggers(db *sql.DB) error {
	triggers := []string{
		`CREATE TRIGGER chunks_fts_insert AFTER INSERT ON chunks
		BEGIN
			INSERT INTO chunks_fts(chunk_id, content_tokens)
			VALUES (NEW.chunk_id, NEW.content_tokens);
		END`,
		`CREATE TRIGGER chunks_fts_update AFTER UPDATE OF content_tokens ON chunks
		BEGIN
			DELETE FROM chunks_fts WHERE chunk_id = OLD.chunk_id;
			INSERT INTO chunks_fts(chunk_id, content_tokens)
			VALUES (NEW.chunk_id, NEW.content_tokens);
		END`,
		`CREATE TRIGGER chunks_fts_delete AFTER DELETE ON chunks
		BEGIN
			DELETE FROM chunks_fts WHERE chunk_id = OLD.chunk_id;
		END`,
	}
	for i, trig := range triggers {
		if _, err := db.Exec(trig); err != nil {
			return fmt.Errorf("create trigger %d: %w", i, err)
		}
	}
	return nil
}

// createVectorTable creates the sqlite-vec vec0 virtual table for the
// vector arm. Must run outside any transaction (grounded on the teacher's
// internal/storage/vector_index.go CreateVectorIndex).
func createVectorTable(db *sql.DB, dimensions int) error {
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE chunks_vec USING vec0(
		chunk_id TEXT PRIMARY KEY,
		embedding float[%d]
	)`, dimensions)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("create chunks_vec: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
