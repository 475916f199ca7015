package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RowCounts summarizes an index's size.
type RowCounts struct {
	FileCount  int
	ChunkCount int
}

// RowCounts returns the distinct file and total chunk counts for index.
func (s *Store) RowCounts(index string) (RowCounts, error) {
	conn, err := s.conn(index)
	if err != nil {
		return RowCounts{}, err
	}
	var counts RowCounts
	err = conn.db.QueryRow(`SELECT COUNT(DISTINCT file_path), COUNT(*) FROM chunks`).
		Scan(&counts.FileCount, &counts.ChunkCount)
	if err != nil {
		return RowCounts{}, fmt.Errorf("store: row counts: %w", err)
	}
	return counts, nil
}

// LanguageBreakdown returns the chunk count per language_id.
func (s *Store) LanguageBreakdown(index string) (map[string]int, error) {
	conn, err := s.conn(index)
	if err != nil {
		return nil, err
	}
	rows, err := conn.db.Query(`SELECT language_id, COUNT(*) FROM chunks GROUP BY language_id`)
	if err != nil {
		return nil, fmt.Errorf("store: language breakdown: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var lang string
		var count int
		if err := rows.Scan(&lang, &count); err != nil {
			return nil, err
		}
		out[lang] = count
	}
	return out, rows.Err()
}

// SymbolBreakdown returns the chunk count per non-empty symbol_type.
func (s *Store) SymbolBreakdown(index string) (map[string]int, error) {
	conn, err := s.conn(index)
	if err != nil {
		return nil, err
	}
	rows, err := conn.db.Query(`SELECT symbol_type, COUNT(*) FROM chunks WHERE symbol_type != '' GROUP BY symbol_type`)
	if err != nil {
		return nil, fmt.Errorf("store: symbol breakdown: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var symType string
		var count int
		if err := rows.Scan(&symType, &count); err != nil {
			return nil, err
		}
		out[symType] = count
	}
	return out, rows.Err()
}

// ParseHealthBreakdown returns the file count per parse status, per
// language_id (status -> language_id -> count).
func (s *Store) ParseHealthBreakdown(index string) (map[string]map[string]int, error) {
	conn, err := s.conn(index)
	if err != nil {
		return nil, err
	}
	rows, err := conn.db.Query(`SELECT status, language_id, COUNT(*) FROM parse_results GROUP BY status, language_id`)
	if err != nil {
		return nil, fmt.Errorf("store: parse health breakdown: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]int{}
	for rows.Next() {
		var status, lang string
		var count int
		if err := rows.Scan(&status, &lang, &count); err != nil {
			return nil, err
		}
		if out[status] == nil {
			out[status] = map[string]int{}
		}
		out[status][lang] = count
	}
	return out, rows.Err()
}

// IndexMeta summarizes one index's bookkeeping row, read from the
// metadata table written at schema creation and refreshed by Touch.
type IndexMeta struct {
	SchemaVersion       string
	EmbeddingDimensions int
	SourcePath          string
	UpdatedAt           time.Time
}

// SetSourcePath records the directory an index was built from, so later
// operations (search's content/context reads) can resolve a chunk's
// relative file_path back to an absolute path without the caller
// repeating source_path on every call.
func (s *Store) SetSourcePath(index, sourcePath string) error {
	conn, err := s.conn(index)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = conn.db.Exec(`
		INSERT INTO metadata (key, value, updated_at) VALUES ('source_path', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, sourcePath, now)
	if err != nil {
		return fmt.Errorf("store: set source path for %s: %w", index, err)
	}
	return nil
}

// Touch stamps the index's updated_at metadata entry with the current
// time, the Indexing Pipeline's final "Timestamp" stage.
func (s *Store) Touch(index string) error {
	conn, err := s.conn(index)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = conn.db.Exec(`
		INSERT INTO metadata (key, value, updated_at) VALUES ('updated_at', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, now, now)
	if err != nil {
		return fmt.Errorf("store: touch index %s: %w", index, err)
	}
	return nil
}

// Meta reads index's bookkeeping metadata.
func (s *Store) Meta(index string) (IndexMeta, error) {
	conn, err := s.conn(index)
	if err != nil {
		return IndexMeta{}, err
	}
	var meta IndexMeta
	var dims string
	var updatedAt string

	if err := conn.db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&meta.SchemaVersion); err != nil {
		return IndexMeta{}, fmt.Errorf("store: read schema version: %w", err)
	}
	if err := conn.db.QueryRow(`SELECT value FROM metadata WHERE key = 'embedding_dimensions'`).Scan(&dims); err != nil {
		return IndexMeta{}, fmt.Errorf("store: read embedding dimensions: %w", err)
	}
	fmt.Sscanf(dims, "%d", &meta.EmbeddingDimensions)

	err = conn.db.QueryRow(`SELECT value FROM metadata WHERE key = 'source_path'`).Scan(&meta.SourcePath)
	if err != nil && err != sql.ErrNoRows {
		return IndexMeta{}, fmt.Errorf("store: read source path: %w", err)
	}

	err = conn.db.QueryRow(`SELECT value FROM metadata WHERE key = 'updated_at'`).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return meta, nil
	}
	if err != nil {
		return IndexMeta{}, fmt.Errorf("store: read updated_at: %w", err)
	}
	meta.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return meta, nil
}
