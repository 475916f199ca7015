// Package engine wires the Language Registry, Symbol Extractor, Store
// Adapter, Query Cache, Indexing Pipeline, and Search Pipeline into the
// system's single public entry point, mirroring the teacher's top-level
// daemon wiring (cmd/daemon's construction of its storage/indexer/mcp
// trio) collapsed into one importable type instead of a long-running
// process, since this system has no daemon/RPC surface of its own
// (SPEC_FULL.md's Non-goals).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/VioletCranberry/cocosearch/internal/cache"
	"github.com/VioletCranberry/cocosearch/internal/chunk"
	"github.com/VioletCranberry/cocosearch/internal/embed"
	"github.com/VioletCranberry/cocosearch/internal/indexpipeline"
	"github.com/VioletCranberry/cocosearch/internal/lang"
	"github.com/VioletCranberry/cocosearch/internal/logging"
	"github.com/VioletCranberry/cocosearch/internal/search"
	"github.com/VioletCranberry/cocosearch/internal/store"
	"github.com/VioletCranberry/cocosearch/internal/symbol"
)

// Result is re-exported so callers never import internal/search directly.
type Result = search.Result

// AnalysisReport is re-exported alongside Result.
type AnalysisReport = search.AnalysisReport

// SearchOptions is re-exported alongside Result.
type SearchOptions = search.Options

// DefaultSearchOptions mirrors search.DefaultOptions.
func DefaultSearchOptions() SearchOptions {
	return search.DefaultOptions()
}

// IndexOptions carries the Indexing Pipeline's enumeration filters.
type IndexOptions = indexpipeline.Options

// IndexResult reports what one CreateOrUpdateIndex call did.
type IndexResult = indexpipeline.Result

// Config configures one Engine.
type Config struct {
	// BaseDir is where per-index SQLite databases live.
	BaseDir string
	// Embedder generates the vectors both pipelines share. Required.
	Embedder embed.Provider
	// Chunking overrides the Chunker's size parameters; the zero value
	// uses chunk.DefaultConfig.
	Chunking chunk.Config
	// Logger defaults to a no-op.
	Logger *logging.Logger
}

// Engine is the system's single public entry point: one Store, one Query
// Cache, and the Indexing/Search pipelines built on top of them, all
// sharing the same Language Registry and Embedder so an index's vector
// arm never mixes embeddings from two different models (SPEC_FULL.md §9).
type Engine struct {
	store     *store.Store
	cache     *cache.Cache
	embedder  embed.Provider
	languages *lang.Registry
	symbols   *symbol.Registry
	indexer   *indexpipeline.Pipeline
	searcher  *search.Pipeline
}

// New builds an Engine from cfg, compiling the built-in language and
// symbol registries. Both are fail-fast at startup, per SPEC_FULL.md §4.1
// and §4.2's "malformed handler is a programming error" contracts.
func New(cfg Config) (*Engine, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("engine: Embedder is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	languages, err := lang.NewRegistry(lang.Default())
	if err != nil {
		return nil, fmt.Errorf("engine: build language registry: %w", err)
	}
	symbols, err := symbol.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("engine: build symbol registry: %w", err)
	}

	st, err := store.Open(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}
	c := cache.New()

	indexer := indexpipeline.New(indexpipeline.Deps{
		Store:     st,
		Embedder:  cfg.Embedder,
		Languages: languages,
		Symbols:   symbols,
		Cache:     c,
		Chunking:  cfg.Chunking,
		Logger:    cfg.Logger,
	})
	searcher := search.New(search.Deps{
		Store:     st,
		Embedder:  cfg.Embedder,
		Languages: languages,
		Cache:     c,
		Logger:    cfg.Logger,
	})

	return &Engine{
		store:     st,
		cache:     c,
		embedder:  cfg.Embedder,
		languages: languages,
		symbols:   symbols,
		indexer:   indexer,
		searcher:  searcher,
	}, nil
}

// Close releases every open per-index database handle and the embedder.
func (e *Engine) Close() error {
	storeErr := e.store.Close()
	embedErr := e.embedder.Close()
	if storeErr != nil {
		return storeErr
	}
	return embedErr
}

// CreateOrUpdateIndex runs the Indexing Pipeline for indexName against
// sourcePath, recording sourcePath so later Search/Analyze/Stats calls can
// resolve a chunk's relative file_path back to an absolute path.
func (e *Engine) CreateOrUpdateIndex(ctx context.Context, indexName, sourcePath string, opts IndexOptions) (IndexResult, error) {
	result, err := e.indexer.Run(ctx, indexName, sourcePath, opts)
	if err != nil {
		return result, err
	}
	if err := e.store.SetSourcePath(indexName, sourcePath); err != nil {
		return result, err
	}
	return result, nil
}

// DropIndex deletes indexName's database and evicts its cache entries.
func (e *Engine) DropIndex(indexName string) error {
	if err := e.store.DropIndex(indexName); err != nil {
		return err
	}
	e.cache.Invalidate(indexName)
	return nil
}

// ListIndexes enumerates every index with a database under Config.BaseDir.
func (e *Engine) ListIndexes() ([]string, error) {
	return e.store.ListIndexes()
}

// Search runs the Search Pipeline for indexName.
func (e *Engine) Search(ctx context.Context, indexName, query string, opts SearchOptions) ([]Result, error) {
	return e.searcher.Search(ctx, indexName, query, opts)
}

// Analyze runs identically to Search but bypasses the cache and returns
// per-stage timings and intermediate counts alongside the results.
func (e *Engine) Analyze(ctx context.Context, indexName, query string, opts SearchOptions) (AnalysisReport, error) {
	return e.searcher.Analyze(ctx, indexName, query, opts)
}

// StalenessThreshold is how long since an index's last Touch before Stats
// reports it Stale, per SPEC_FULL.md §2/§6's 7-day staleness threshold.
const StalenessThreshold = 7 * 24 * time.Hour

// Stats reports an index's size, language/symbol/parse-health breakdowns,
// and bookkeeping metadata (SPEC_FULL.md's Stats operation).
type Stats struct {
	IndexName         string
	RowCounts         store.RowCounts
	LanguageBreakdown map[string]int
	SymbolBreakdown   map[string]int
	ParseHealth       map[string]map[string]int
	Meta              store.IndexMeta
	// Stale is true when the index hasn't been touched by an indexing run
	// in more than StalenessThreshold.
	Stale bool
}

// Stats aggregates indexName's bookkeeping for reporting, erroring as
// cerr.ErrUnknownIndex if indexName has never been created.
func (e *Engine) Stats(indexName string) (Stats, error) {
	return e.statsFor(indexName)
}

// AllStats reports Stats for every index under Config.BaseDir, the
// argument-omitted form of SPEC_FULL.md's stats(index_name?) → ... |
// [IndexStats] entry point.
func (e *Engine) AllStats() ([]Stats, error) {
	names, err := e.store.ListIndexes()
	if err != nil {
		return nil, err
	}
	out := make([]Stats, 0, len(names))
	for _, name := range names {
		s, err := e.statsFor(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) statsFor(indexName string) (Stats, error) {
	if _, err := e.store.Capabilities(indexName); err != nil {
		return Stats{}, err
	}

	rowCounts, err := e.store.RowCounts(indexName)
	if err != nil {
		return Stats{}, err
	}
	langBreakdown, err := e.store.LanguageBreakdown(indexName)
	if err != nil {
		return Stats{}, err
	}
	symBreakdown, err := e.store.SymbolBreakdown(indexName)
	if err != nil {
		return Stats{}, err
	}
	parseHealth, err := e.store.ParseHealthBreakdown(indexName)
	if err != nil {
		return Stats{}, err
	}
	meta, err := e.store.Meta(indexName)
	if err != nil {
		return Stats{}, err
	}

	stale := meta.UpdatedAt.IsZero() || time.Since(meta.UpdatedAt) > StalenessThreshold

	return Stats{
		IndexName:         indexName,
		RowCounts:         rowCounts,
		LanguageBreakdown: langBreakdown,
		SymbolBreakdown:   symBreakdown,
		ParseHealth:       parseHealth,
		Meta:              meta,
		Stale:             stale,
	}, nil
}
