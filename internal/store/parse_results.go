package store

import (
	"fmt"
	"time"
)

// Parse status values, per SPEC_FULL.md's Parse Result: status ∈ {ok,
// partial, error, no_grammar}.
const (
	StatusOK        = "ok"
	StatusPartial   = "partial"
	StatusError     = "error"
	StatusNoGrammar = "no_grammar"
)

// ParseResult is one file's parse-health record (SPEC_FULL.md's Parse
// Tracker). status is one of StatusOK, StatusPartial, StatusError,
// StatusNoGrammar.
type ParseResult struct {
	FilePath     string
	LanguageID   string
	Status       string
	ErrorCount   int
	ErrorMessage string
	RecordedAt   time.Time
}

// RecordParseResult upserts one file's parse outcome. Called once per
// distinct file during indexing regardless of how many chunks it produced.
func (s *Store) RecordParseResult(index string, r ParseResult) error {
	conn, err := s.conn(index)
	if err != nil {
		return err
	}
	recordedAt := r.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err = conn.db.Exec(`
		INSERT INTO parse_results (file_path, language_id, status, error_count, error_message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			language_id = excluded.language_id,
			status = excluded.status,
			error_count = excluded.error_count,
			error_message = excluded.error_message,
			recorded_at = excluded.recorded_at
	`, r.FilePath, r.LanguageID, r.Status, r.ErrorCount, r.ErrorMessage, recordedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: record parse result for %s: %w", r.FilePath, err)
	}
	return nil
}

// ParseResults returns every recorded parse result for index.
func (s *Store) ParseResults(index string) ([]ParseResult, error) {
	conn, err := s.conn(index)
	if err != nil {
		return nil, err
	}
	rows, err := conn.db.Query(`SELECT file_path, language_id, status, error_count, error_message, recorded_at FROM parse_results`)
	if err != nil {
		return nil, fmt.Errorf("store: list parse results: %w", err)
	}
	defer rows.Close()

	var results []ParseResult
	for rows.Next() {
		var r ParseResult
		var recordedAt string
		if err := rows.Scan(&r.FilePath, &r.LanguageID, &r.Status, &r.ErrorCount, &r.ErrorMessage, &recordedAt); err != nil {
			return nil, err
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}
