// Package search implements the Search Pipeline (SPEC_FULL.md §4.7): cache
// probe, hybrid mode decision, query embedding, filter resolution, parallel
// vector/keyword search, Reciprocal Rank Fusion, definition boosting,
// filter/limit, context expansion, and cache population. Grounded on the
// teacher's internal/graph/searcher.go (the otter-cached, goroutine-backed
// query shape) and internal/mcp/chromem_searcher.go (the cache-first
// short-circuit before touching the store), generalized to this system's
// two-arm SQL search instead of an in-memory graph walk.
package search

import "github.com/VioletCranberry/cocosearch/internal/store"

// HybridMode controls whether the lexical arm runs alongside the vector
// arm (SPEC_FULL.md §4.7's use_hybrid option).
type HybridMode string

const (
	HybridAuto HybridMode = "auto"
	HybridOn   HybridMode = "on"
	HybridOff  HybridMode = "off"
)

// RRFK is the Reciprocal Rank Fusion constant (SPEC_FULL.md §6).
const RRFK = 60

// DefinitionBoostFactor multiplies the RRF score of a chunk whose
// symbol_type is a definition kind and whose text opens with a
// language-appropriate definition keyword (SPEC_FULL.md §4.7 stage 8).
const DefinitionBoostFactor = 2.0

// OverFetchFactor requests this many times limit from each search arm
// before fusion narrows the candidate set (SPEC_FULL.md §6).
const OverFetchFactor = 2

// MaxOverFetch caps the over-fetch request regardless of limit.
const MaxOverFetch = 100

// MaxContentLines caps a smart-context expansion (SPEC_FULL.md §4.7/§6).
const MaxContentLines = 50

// MaxContentColumns caps any one line of returned content; longer lines
// are truncated with an ellipsis (SPEC_FULL.md §4.7 stage 10).
const MaxContentColumns = 200

// Options configures one search call (SPEC_FULL.md §4.7's options table).
type Options struct {
	Limit            int
	MinScore         float64
	LanguageFilter   []string
	SymbolTypeFilter []string
	SymbolNameFilter string
	UseHybrid        HybridMode
	SmartContext     bool
	ContextBefore    int
	ContextAfter     int
	BypassCache      bool
}

// DefaultOptions returns SPEC_FULL.md §6's documented option defaults.
func DefaultOptions() Options {
	return Options{
		Limit:        10,
		MinScore:     0,
		UseHybrid:    HybridAuto,
		SmartContext: true,
	}
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultOptions().Limit
	}
	if o.UseHybrid == "" {
		o.UseHybrid = HybridAuto
	}
	return o
}

// overFetchLimit computes the per-arm request size for limit, per
// SPEC_FULL.md §4.5's "min(2*L, 100)" rule.
func overFetchLimit(limit int) int {
	n := limit * OverFetchFactor
	if n > MaxOverFetch {
		n = MaxOverFetch
	}
	if n < limit {
		n = limit
	}
	return n
}

// MatchType reports which arm(s) produced a Result.
type MatchType string

const (
	MatchSemantic MatchType = "semantic"
	MatchKeyword  MatchType = "keyword"
	MatchBoth     MatchType = "both"
)

// Result is one ranked, presentation-ready chunk (SPEC_FULL.md §6's
// Result shape).
type Result struct {
	FilePath        string
	ByteRange       [2]int
	LineRange       [2]int
	Score           float64
	BlockType       string
	Hierarchy       string
	LanguageID      string
	SymbolType      string
	SymbolName      string
	SymbolSignature string
	MatchType       MatchType
	VectorScore     *float64
	KeywordScore    *float64
	Content         string
	ContextBefore   string
	ContextAfter    string
}

// AnalysisReport is the "analyze" variant's return value: the same
// results a Search call would produce, plus per-stage timings and
// intermediate counts, and never touches the cache.
type AnalysisReport struct {
	Results []Result
	Stages  []StageTiming
	Counts  map[string]int
}

// StageTiming names one recorded pipeline stage's wall-clock duration.
type StageTiming struct {
	Name       string
	DurationMS int64
}

func toFilters(languageIDs []string, opts Options) store.Filters {
	return store.Filters{
		LanguageIDs:    languageIDs,
		SymbolTypes:    opts.SymbolTypeFilter,
		SymbolNameGlob: opts.SymbolNameFilter,
	}
}
