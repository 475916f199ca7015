// Package indexpipeline implements the Indexing Pipeline (SPEC_FULL.md
// §4.6): enumerate, invalidate, classify, chunk, extract, preprocess,
// embed, upsert, track, timestamp. Grounded on the teacher's
// internal/indexer package (its enumerate-then-per-file-transaction
// shape), generalized from the teacher's call-graph extraction to this
// system's chunk-level metadata/symbol/lexical/embedding pipeline.
package indexpipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/VioletCranberry/cocosearch/internal/cache"
	"github.com/VioletCranberry/cocosearch/internal/cerr"
	"github.com/VioletCranberry/cocosearch/internal/chunk"
	"github.com/VioletCranberry/cocosearch/internal/discovery"
	"github.com/VioletCranberry/cocosearch/internal/embed"
	"github.com/VioletCranberry/cocosearch/internal/lang"
	"github.com/VioletCranberry/cocosearch/internal/lexical"
	"github.com/VioletCranberry/cocosearch/internal/logging"
	"github.com/VioletCranberry/cocosearch/internal/store"
	"github.com/VioletCranberry/cocosearch/internal/symbol"
	"github.com/VioletCranberry/cocosearch/internal/timing"
)

// EmbedBatchSize is the default chunk-text batch size passed to
// embed.EmbedWithProgress for one file's chunks.
const EmbedBatchSize = 50

// Options carries the per-run enumeration filters (SPEC_FULL.md §4.6's
// entry point include_globs/exclude_globs).
type Options struct {
	IncludeGlobs []string
	ExcludeGlobs []string
}

// Deps are the collaborators a Pipeline wires together. All fields are
// required except Chunking (defaults to chunk.DefaultConfig), Logger
// (defaults to a no-op) and Timing (defaults to a fresh recorder).
type Deps struct {
	Store     *store.Store
	Embedder  embed.Provider
	Languages *lang.Registry
	Symbols   *symbol.Registry
	Cache     *cache.Cache
	Chunking  chunk.Config
	Logger    *logging.Logger
	Timing    *timing.Recorder
}

// Pipeline runs indexing runs against one set of collaborators.
type Pipeline struct {
	deps Deps
}

// New builds a Pipeline. Chunking defaults to chunk.DefaultConfig when
// unset.
func New(deps Deps) *Pipeline {
	if deps.Chunking.Target <= 0 {
		deps.Chunking = chunk.DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Timing == nil {
		deps.Timing = timing.New()
	}
	return &Pipeline{deps: deps}
}

// Result reports what one indexing run did.
type Result struct {
	FilesScanned  int
	FilesIndexed  int
	FilesSkipped  int
	FilesDeleted  int
	ChunksWritten int
	Duration      time.Duration
}

// Run executes one indexing run for indexName against sourcePath, per
// SPEC_FULL.md §4.6's ten stages. Files are processed one at a time so a
// caller-cancelled context leaves every already-committed file's chunks
// intact (SPEC_FULL.md §5's "indexing is cancellable between files, not
// mid-transaction" guarantee); an exhausted embedder aborts the run at the
// file boundary, per SPEC_FULL.md §4.6's failure semantics.
func (p *Pipeline) Run(ctx context.Context, indexName, sourcePath string, opts Options) (Result, error) {
	start := time.Now()
	var result Result

	logger := p.deps.Logger.WithIndex(indexName)

	// Stage 1: Enumerate.
	walker, err := discovery.New(sourcePath, opts.IncludeGlobs, opts.ExcludeGlobs)
	if err != nil {
		return result, fmt.Errorf("indexpipeline: enumerate: %w", err)
	}
	relFiles, err := walker.Walk()
	if err != nil {
		return result, fmt.Errorf("indexpipeline: enumerate: %w", err)
	}
	result.FilesScanned = len(relFiles)

	// Stage 2: Invalidate, before any chunk write.
	p.deps.Cache.Invalidate(indexName)

	if _, err := p.deps.Store.EnsureSchema(indexName, p.deps.Embedder.Dimensions()); err != nil {
		return result, fmt.Errorf("indexpipeline: ensure schema: %w", err)
	}

	present := make(map[string]bool, len(relFiles))
	for _, rel := range relFiles {
		present[rel] = true

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		indexed, skipped, chunksWritten, err := p.indexFile(ctx, indexName, sourcePath, rel, logger)
		if err != nil {
			return result, err
		}
		if skipped {
			result.FilesSkipped++
			continue
		}
		if indexed {
			result.FilesIndexed++
			result.ChunksWritten += chunksWritten
		}
	}

	// Files present in the store but no longer on disk are removed
	// explicitly (SPEC_FULL.md §4.6 stage 8: "files no longer present
	// must be explicitly deleted by filename").
	existing, err := p.deps.Store.ListFiles(indexName)
	if err != nil {
		return result, fmt.Errorf("indexpipeline: list existing files: %w", err)
	}
	for _, f := range existing {
		if present[f] {
			continue
		}
		if err := p.deps.Store.DeleteChunksForFile(indexName, f); err != nil {
			return result, fmt.Errorf("indexpipeline: delete removed file %s: %w", f, err)
		}
		result.FilesDeleted++
	}

	// Stage 10: Timestamp.
	if err := p.deps.Store.Touch(indexName); err != nil {
		return result, fmt.Errorf("indexpipeline: touch index: %w", err)
	}

	result.Duration = time.Since(start)
	logger.Info("indexing run complete",
		"files_scanned", result.FilesScanned,
		"files_indexed", result.FilesIndexed,
		"files_skipped", result.FilesSkipped,
		"files_deleted", result.FilesDeleted,
		"chunks_written", result.ChunksWritten,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// indexFile runs stages 3-9 for one file. skipped is true when the
// file's content hash is unchanged since the last run. A returned error
// always aborts the whole run (whole-pipeline resource failure). Per-file
// problems are never a returned error: an unreadable file is logged and
// reported through indexed=false with no parse_results row, and a parse
// problem is recorded in the file's parse_results row.
func (p *Pipeline) indexFile(ctx context.Context, indexName, sourcePath, rel string, logger *logging.Logger) (indexed, skipped bool, chunksWritten int, err error) {
	absPath := filepath.Join(sourcePath, rel)
	content, readErr := os.ReadFile(absPath)
	if readErr != nil {
		// SPEC_FULL.md §7: UnreadableSource is recovered locally during
		// indexing (the file is skipped, not the whole run aborted).
		logger.Warn("skipping unreadable file", "file", rel, "error", readErr)
		return false, false, 0, nil
	}

	contentHash := fmt.Sprintf("%x", sha256.Sum256(content))
	previousHash, hadPrevious, err := p.deps.Store.FileContentHash(indexName, rel)
	if err != nil {
		return false, false, 0, fmt.Errorf("%w: %v", cerr.ErrStoreUnavailable, err)
	}
	if hadPrevious && previousHash == contentHash {
		return false, true, 0, nil
	}

	// Stage 3: Classify.
	languageID := p.deps.Languages.LanguageFor(rel, content)

	// Stage 5 (file-level half): parse the whole file once, both for
	// per-chunk symbol assignment and the Track stage's parse status, so
	// a file is never parsed twice for the same grammar. Extract's
	// tree-sitter parser always recovers a best-effort tree, so a broken
	// file never surfaces as a Go error here; status instead comes from
	// the tree's own ParseHealth (SPEC_FULL.md §7's GrammarParseError).
	var symbols []symbol.Symbol
	status := store.StatusNoGrammar
	errMessage := ""
	errCount := 0
	if p.deps.Symbols.HasGrammar(languageID) {
		var parseErr error
		var health symbol.ParseHealth
		symbols, health, parseErr = p.deps.Symbols.Extract(languageID, content)
		switch {
		case parseErr != nil:
			status = store.StatusError
			errMessage = parseErr.Error()
			errCount = 1
		case health.RootFailed:
			status = store.StatusError
			errCount = health.ErrorCount
			errMessage = "grammar present but parse failed"
		case health.ErrorCount > 0:
			status = store.StatusPartial
			errCount = health.ErrorCount
		default:
			status = store.StatusOK
		}
	}

	// Stage 4: Chunk.
	chunks := chunk.Split(content, p.deps.Languages.Separators(languageID), p.deps.Chunking)

	extractor := p.deps.Languages.Extractor(languageID)
	records := make([]store.ChunkRecord, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		var meta lang.Metadata
		if extractor != nil {
			meta = extractor(c.Text, languageID)
		}
		sym := bestSymbolForRange(symbols, c.Start, c.End)

		// Stage 6: Preprocess.
		tokens := lexical.Tokenize(string(c.Text), rel)
		texts[i] = tokens

		records[i] = store.ChunkRecord{
			FilePath:        rel,
			LanguageID:      languageID,
			SymbolType:      sym.Type,
			SymbolName:      sym.Name,
			SymbolSignature: sym.Signature,
			BlockType:       meta.BlockType,
			Hierarchy:       meta.Hierarchy,
			StartByte:       c.Start,
			EndByte:         c.End,
			StartLine:       lineOf(content, c.Start),
			EndLine:         lineOf(content, c.End),
			ContentTokens:   tokens,
			FileContentHash: contentHash,
		}
	}

	// Stage 7: Embed. One batched call per file; chunk text (not the
	// tokenized lexical form) is what gets embedded.
	if len(chunks) > 0 {
		embedTexts := make([]string, len(chunks))
		for i, c := range chunks {
			embedTexts[i] = string(c.Text)
		}
		embeddings, embedErr := embed.EmbedWithProgress(ctx, p.deps.Embedder, embedTexts, embed.EmbedModePassage, EmbedBatchSize, nil)
		if embedErr != nil {
			return false, false, 0, fmt.Errorf("%w: %v", cerr.ErrEmbedderUnavailable, embedErr)
		}
		for i := range records {
			records[i].Embedding = embeddings[i]
		}
	}

	// Stage 8: Upsert (one transaction for this file's chunks).
	if err := p.deps.Store.UpsertChunks(indexName, records); err != nil {
		return false, false, 0, fmt.Errorf("%w: %v", cerr.ErrStoreUnavailable, err)
	}

	// Stage 9: Track.
	if err := p.deps.Store.RecordParseResult(indexName, store.ParseResult{
		FilePath:     rel,
		LanguageID:   languageID,
		Status:       status,
		ErrorCount:   errCount,
		ErrorMessage: errMessage,
	}); err != nil {
		return false, false, 0, fmt.Errorf("%w: %v", cerr.ErrStoreUnavailable, err)
	}

	return true, false, len(records), nil
}

// bestSymbolForRange picks the symbol with the largest byte overlap with
// [start, end), preferring the earliest start on ties. A chunk with no
// overlapping symbol gets the zero Symbol (empty type/name/signature),
// satisfying the engine's symbol-completeness invariant.
func bestSymbolForRange(symbols []symbol.Symbol, start, end int) symbol.Symbol {
	var best symbol.Symbol
	bestOverlap := 0
	for _, sym := range symbols {
		overlapStart := max(start, sym.StartByte)
		overlapEnd := min(end, sym.EndByte)
		overlap := overlapEnd - overlapStart
		if overlap <= 0 {
			continue
		}
		if overlap > bestOverlap || (overlap == bestOverlap && sym.StartByte < best.StartByte) {
			best = sym
			bestOverlap = overlap
		}
	}
	return best
}

// lineOf returns the 1-based line number containing byte offset in
// content.
func lineOf(content []byte, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	line := 1
	for _, b := range content[:offset] {
		if b == '\n' {
			line++
		}
	}
	return line
}
