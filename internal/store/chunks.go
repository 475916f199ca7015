package store

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// ChunkRecord is the unit the Indexing Pipeline writes and the Search
// Pipeline reads back. Its primary key is content-addressed from
// (FilePath, StartByte, EndByte) rather than a synthetic UUID, so
// re-indexing an unchanged chunk produces the same chunk_id and a plain
// upsert (see DESIGN.md's content-addressed chunk ID note).
type ChunkRecord struct {
	FilePath         string
	LanguageID       string
	SymbolType       string
	SymbolName       string
	SymbolSignature  string
	BlockType        string
	Hierarchy        string
	StartByte        int
	EndByte          int
	StartLine        int
	EndLine          int
	ContentTokens    string
	Embedding        []float32
	FileContentHash  string
}

// ChunkID derives the content-addressed primary key for a chunk.
func ChunkID(filePath string, startByte, endByte int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", filePath, startByte, endByte)))
	return fmt.Sprintf("%x", sum)
}

// UpsertChunks replaces every chunk belonging to the files referenced by
// records, in a single transaction (SPEC_FULL.md's "all-or-nothing per
// transaction" indexing requirement). Grounded on the teacher's
// internal/storage/chunk_writer.go WriteChunksIncremental delete-then-
// insert-per-file pattern, extended to also upsert the sqlite-vec shadow
// table (which doesn't support INSERT OR REPLACE).
func (s *Store) UpsertChunks(index string, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	conn, err := s.conn(index)
	if err != nil {
		return err
	}

	tx, err := conn.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin upsert: %w", err)
	}
	defer tx.Rollback()

	files := map[string]bool{}
	for _, r := range records {
		files[r.FilePath] = true
	}
	for file := range files {
		if err := deleteChunksForFileTx(tx, file); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		id := ChunkID(r.FilePath, r.StartByte, r.EndByte)
		_, err := sq.Insert("chunks").
			Columns("chunk_id", "file_path", "language_id", "symbol_type", "symbol_name",
				"symbol_signature", "block_type", "hierarchy", "start_byte", "end_byte", "start_line", "end_line",
				"content_tokens", "embedding", "file_content_hash", "created_at", "updated_at").
			Values(id, r.FilePath, r.LanguageID, r.SymbolType, r.SymbolName,
				r.SymbolSignature, r.BlockType, r.Hierarchy, r.StartByte, r.EndByte, r.StartLine, r.EndLine,
				r.ContentTokens, serializeEmbedding(r.Embedding), r.FileContentHash, now, now).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("store: insert chunk %s: %w", id, err)
		}

		vecBytes, err := sqlite_vec.SerializeFloat32(r.Embedding)
		if err != nil {
			return fmt.Errorf("store: serialize vector for chunk %s: %w", id, err)
		}
		if _, err := tx.Exec(`DELETE FROM chunks_vec WHERE chunk_id = ?`, id); err != nil {
			return fmt.Errorf("store: clear vector for chunk %s: %w", id, err)
		}
		if _, err := tx.Exec(`INSERT INTO chunks_vec (chunk_id, embedding) VALUES (?, ?)`, id, vecBytes); err != nil {
			return fmt.Errorf("store: insert vector for chunk %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// DeleteChunksForFile removes every chunk (and its vector shadow entry)
// belonging to filePath. Used when a file is deleted from the source tree.
func (s *Store) DeleteChunksForFile(index, filePath string) error {
	conn, err := s.conn(index)
	if err != nil {
		return err
	}
	tx, err := conn.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin delete: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChunksForFileTx(tx, filePath); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM parse_results WHERE file_path = ?`, filePath); err != nil {
		return fmt.Errorf("store: delete parse result for %s: %w", filePath, err)
	}
	return tx.Commit()
}

func deleteChunksForFileTx(tx *sql.Tx, filePath string) error {
	rows, err := tx.Query(`SELECT chunk_id FROM chunks WHERE file_path = ?`, filePath)
	if err != nil {
		return fmt.Errorf("store: list chunks for %s: %w", filePath, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := sq.Delete("chunks").Where(sq.Eq{"file_path": filePath}).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("store: delete chunks for %s: %w", filePath, err)
	}
	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM chunks_vec WHERE chunk_id = ?`, id); err != nil {
			return fmt.Errorf("store: delete vector %s: %w", id, err)
		}
	}
	return nil
}

// FileContentHash returns the recorded content hash for filePath, and
// whether the file is already indexed. Used by the Indexing Pipeline's
// incremental-skip check.
func (s *Store) FileContentHash(index, filePath string) (string, bool, error) {
	conn, err := s.conn(index)
	if err != nil {
		return "", false, err
	}
	var hash string
	err = conn.db.QueryRow(`SELECT file_content_hash FROM chunks WHERE file_path = ? LIMIT 1`, filePath).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: read content hash for %s: %w", filePath, err)
	}
	return hash, true, nil
}

// ListFiles returns every distinct file_path with at least one chunk.
func (s *Store) ListFiles(index string) ([]string, error) {
	conn, err := s.conn(index)
	if err != nil {
		return nil, err
	}
	rows, err := conn.db.Query(`SELECT DISTINCT file_path FROM chunks ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("store: list files: %w", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
