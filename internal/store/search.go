package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/VioletCranberry/cocosearch/internal/cerr"
)

// Hit is one row returned by either search arm, joined back against the
// chunks table for the scalar fields the Search Pipeline needs for
// filtering, definition boosting, and context expansion.
type Hit struct {
	ChunkID         string
	FilePath        string
	LanguageID      string
	SymbolType      string
	SymbolName      string
	SymbolSignature string
	BlockType       string
	Hierarchy       string
	StartByte       int
	EndByte         int
	StartLine       int
	EndLine         int
	Score           float64 // vector: similarity (higher better); keyword: bm25 rank (lower better, see VectorSearch/KeywordSearch docs)
}

// VectorSearch runs a cosine-distance KNN query against the vector arm and
// joins the winning chunk_ids back against the chunks table for scalar
// filtering. Grounded on the teacher's internal/storage/vector_index.go
// QueryVectorSimilarity, extended with Filters applied post-join (vec0
// cannot itself filter on scalar columns it doesn't store).
func (s *Store) VectorSearch(index string, queryEmbedding []float32, filters Filters, limit int) ([]Hit, error) {
	conn, err := s.conn(index)
	if err != nil {
		return nil, err
	}

	queryBytes, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("store: serialize query embedding: %w", err)
	}

	// Over-fetch from the KNN arm before the scalar-filter join narrows
	// results, matching SPEC_FULL.md §4's 2x over-fetch constant.
	overFetchLimit := limit * 2
	if overFetchLimit < limit {
		overFetchLimit = limit
	}

	q := sq.Select(
		"c.chunk_id", "c.file_path", "c.language_id", "c.symbol_type", "c.symbol_name",
		"c.symbol_signature", "c.block_type", "c.hierarchy", "c.start_byte", "c.end_byte", "c.start_line", "c.end_line",
		"v.distance",
	).
		FromSelect(
			sq.Select("chunk_id", "vec_distance_cosine(embedding, ?) AS distance").
				From("chunks_vec").
				OrderBy("distance").
				Limit(uint64(overFetchLimit)),
			"v",
		).
		Join("chunks c ON c.chunk_id = v.chunk_id").
		OrderBy("v.distance").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Question)
	q = filters.apply(q)

	rows, err := q.RunWith(conn.db).Query(queryBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", cerr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var distance float64
		if err := rows.Scan(&h.ChunkID, &h.FilePath, &h.LanguageID, &h.SymbolType, &h.SymbolName,
			&h.SymbolSignature, &h.BlockType, &h.Hierarchy, &h.StartByte, &h.EndByte, &h.StartLine, &h.EndLine, &distance); err != nil {
			return nil, fmt.Errorf("store: scan vector hit: %w", err)
		}
		h.Score = 1.0 - distance // SPEC_FULL.md §4.5: score is 1 - cosine_distance
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// KeywordSearch runs an FTS5 MATCH query against the lexical arm, ranked
// by bm25 (lower is better), joined back against chunks for scalar
// filtering. Grounded on the teacher's files_fts table
// (internal/storage/schema.go), re-keyed from file_path to chunk_id.
func (s *Store) KeywordSearch(index, query string, filters Filters, limit int) ([]Hit, error) {
	conn, err := s.conn(index)
	if err != nil {
		return nil, err
	}

	overFetchLimit := limit * 2
	if overFetchLimit < limit {
		overFetchLimit = limit
	}

	q := sq.Select(
		"c.chunk_id", "c.file_path", "c.language_id", "c.symbol_type", "c.symbol_name",
		"c.symbol_signature", "c.block_type", "c.hierarchy", "c.start_byte", "c.end_byte", "c.start_line", "c.end_line",
		"f.rank",
	).
		FromSelect(
			sq.Select("chunk_id", "bm25(chunks_fts) AS rank").
				From("chunks_fts").
				Where("chunks_fts MATCH ?", query).
				OrderBy("rank").
				Limit(uint64(overFetchLimit)),
			"f",
		).
		Join("chunks c ON c.chunk_id = f.chunk_id").
		OrderBy("f.rank").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Question)
	q = filters.apply(q)

	rows, err := q.RunWith(conn.db).Query()
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search: %v", cerr.ErrMalformedQuery, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ChunkID, &h.FilePath, &h.LanguageID, &h.SymbolType, &h.SymbolName,
			&h.SymbolSignature, &h.BlockType, &h.Hierarchy, &h.StartByte, &h.EndByte, &h.StartLine, &h.EndLine, &h.Score); err != nil {
			return nil, fmt.Errorf("store: scan keyword hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Embedding retrieves the stored embedding for a chunk, e.g. for the Query
// Cache's L2 semantic bucket comparisons.
func (s *Store) Embedding(index, chunkID string) ([]float32, error) {
	conn, err := s.conn(index)
	if err != nil {
		return nil, err
	}
	var blob []byte
	err = conn.db.QueryRow(`SELECT embedding FROM chunks WHERE chunk_id = ?`, chunkID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: chunk %s not found", chunkID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read embedding for %s: %w", chunkID, err)
	}
	return deserializeEmbedding(blob)
}
