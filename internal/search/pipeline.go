package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/VioletCranberry/cocosearch/internal/cache"
	"github.com/VioletCranberry/cocosearch/internal/cerr"
	"github.com/VioletCranberry/cocosearch/internal/contextexpand"
	"github.com/VioletCranberry/cocosearch/internal/embed"
	"github.com/VioletCranberry/cocosearch/internal/lang"
	"github.com/VioletCranberry/cocosearch/internal/lexical"
	"github.com/VioletCranberry/cocosearch/internal/logging"
	"github.com/VioletCranberry/cocosearch/internal/store"
	"github.com/VioletCranberry/cocosearch/internal/timing"
)

// Deps are the collaborators one Pipeline queries against. All fields are
// required except Logger, which defaults to a no-op.
type Deps struct {
	Store     *store.Store
	Embedder  embed.Provider
	Languages *lang.Registry
	Cache     *cache.Cache
	Logger    *logging.Logger
}

// Pipeline runs search calls against one set of collaborators. Grounded on
// the teacher's internal/graph/searcher.go (cache-first, goroutine-backed
// two-arm query shape) and internal/mcp/chromem_searcher.go (short-circuit
// on a cache hit before touching the store), generalized to RRF-fused SQL
// search over two arms instead of a single in-memory graph.
type Pipeline struct {
	deps Deps
}

// New builds a Pipeline.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Pipeline{deps: deps}
}

type cachedPayload struct {
	Results []Result
}

// Search runs opts against indexName, probing and populating the Query
// Cache unless opts.BypassCache is set.
func (p *Pipeline) Search(ctx context.Context, indexName, query string, opts Options) ([]Result, error) {
	results, _, err := p.run(ctx, indexName, query, opts, nil)
	return results, err
}

// Analyze runs identically to Search but never touches the cache and
// returns per-stage timings and intermediate counts alongside the results,
// per SPEC_FULL.md §4.7's "analyze" entry point.
func (p *Pipeline) Analyze(ctx context.Context, indexName, query string, opts Options) (AnalysisReport, error) {
	opts.BypassCache = true
	rec := timing.New()
	results, counts, err := p.run(ctx, indexName, query, opts, rec)
	if err != nil {
		return AnalysisReport{}, err
	}

	stages := make([]StageTiming, 0, len(rec.Stages()))
	for _, s := range rec.Stages() {
		stages = append(stages, StageTiming{Name: s.Name, DurationMS: s.Duration.Milliseconds()})
	}
	return AnalysisReport{Results: results, Stages: stages, Counts: counts}, nil
}

// run implements SPEC_FULL.md §4.7's eleven stages. rec is non-nil only
// for Analyze, where every stage is timed; Search runs the same code path
// with timing dropped on the floor.
func (p *Pipeline) run(ctx context.Context, indexName, query string, opts Options, rec *timing.Recorder) ([]Result, map[string]int, error) {
	opts = opts.withDefaults()
	logger := p.deps.Logger.WithIndex(indexName)
	counts := map[string]int{}

	languageIDs, err := p.resolveLanguageFilter(opts.LanguageFilter)
	if err != nil {
		return nil, nil, err
	}
	if err := validateSymbolGlob(opts.SymbolNameFilter); err != nil {
		return nil, nil, err
	}

	caps, err := p.deps.Store.Capabilities(indexName)
	if err != nil {
		return nil, nil, err
	}
	if len(opts.SymbolTypeFilter) > 0 || opts.SymbolNameFilter != "" {
		if !caps.HasSymbolColumns {
			return nil, nil, fmt.Errorf("%w", cerr.ErrSymbolFilterUnsupported)
		}
	}

	fp := fingerprint(indexName, query, languageIDs, opts.SymbolTypeFilter, opts.SymbolNameFilter, opts.Limit, opts.MinScore, opts.UseHybrid)
	fpNoQuery := fingerprintWithoutQuery(indexName, languageIDs, opts.SymbolTypeFilter, opts.SymbolNameFilter, opts.Limit, opts.MinScore, opts.UseHybrid)

	// Stage 1: L1 exact-match probe.
	if !opts.BypassCache {
		var cached cachedPayload
		var hit bool
		track(rec, "cache_l1", func() error {
			entry, ok := p.deps.Cache.GetExact(fp)
			if !ok {
				return nil
			}
			payload, ok := entry.Payload.(cachedPayload)
			if !ok {
				return nil
			}
			cached, hit = payload, true
			counts["cache_hit"] = 1
			return nil
		})
		if hit {
			return cached.Results, counts, nil
		}
	}

	// Stage 2: embed the query once; reused for the vector arm and the L2
	// cache probe/population.
	var queryEmbedding []float32
	err = track(rec, "embed_query", func() error {
		embeddings, embedErr := p.deps.Embedder.Embed(ctx, []string{query}, embed.EmbedModeQuery)
		if embedErr != nil {
			return fmt.Errorf("%w: %v", cerr.ErrEmbedderUnavailable, embedErr)
		}
		queryEmbedding = embeddings[0]
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Stage 3: L2 semantic probe, within this filter bucket.
	if !opts.BypassCache {
		var hit bool
		var cached cachedPayload
		track(rec, "cache_l2", func() error {
			entry, ok := p.deps.Cache.GetSemantic(ctx, fpNoQuery, queryEmbedding)
			if ok {
				if payload, ok := entry.Payload.(cachedPayload); ok {
					cached = payload
					hit = true
					counts["cache_hit"] = 1
				}
			}
			return nil
		})
		if hit {
			return cached.Results, counts, nil
		}
	}

	// Stage 4: hybrid mode decision.
	useLexical := decideMode(opts.UseHybrid, query)
	counts["use_lexical"] = boolToInt(useLexical)

	filters := toFilters(languageIDs, opts)
	fetchLimit := overFetchLimit(opts.Limit)

	var vectorHits, keywordHits []store.Hit
	var vectorErr, keywordErr error
	track(rec, "search_arms", func() error {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectorHits, vectorErr = p.deps.Store.VectorSearch(indexName, queryEmbedding, filters, fetchLimit)
		}()
		if useLexical && caps.HasContentTSV {
			wg.Add(1)
			go func() {
				defer wg.Done()
				normalized := lexical.Tokenize(query, "")
				keywordHits, keywordErr = p.deps.Store.KeywordSearch(indexName, normalized, filters, fetchLimit)
			}()
		}
		wg.Wait()
		return nil
	})
	if vectorErr != nil {
		return nil, nil, vectorErr
	}
	if keywordErr != nil {
		return nil, nil, keywordErr
	}
	counts["vector_hits"] = len(vectorHits)
	counts["keyword_hits"] = len(keywordHits)

	// Stage 7: fuse.
	var fused []fusedHit
	track(rec, "fuse", func() error {
		fused = fuse(vectorHits, keywordHits, RRFK)
		return nil
	})

	// Stage 8: definition boost.
	sourcePath, _ := p.sourcePathFor(indexName)
	files := newFileCache(sourcePath)
	readText := func(h store.Hit) (string, bool) {
		return files.slice(h.FilePath, h.StartByte, h.EndByte)
	}
	track(rec, "definition_boost", func() error {
		applyDefinitionBoost(fused, readText)
		return nil
	})

	// Stage 9: filter by min_score, truncate to limit.
	var kept []fusedHit
	for _, f := range fused {
		if f.score < opts.MinScore {
			continue
		}
		kept = append(kept, f)
		if len(kept) >= opts.Limit {
			break
		}
	}

	// Stage 10: build results, with content/context expansion.
	var results []Result
	err = track(rec, "build_results", func() error {
		var buildErr error
		results, buildErr = p.buildResults(kept, sourcePath, opts, files)
		return buildErr
	})
	if err != nil {
		return nil, nil, err
	}

	// Stage 11: populate cache.
	if !opts.BypassCache {
		track(rec, "cache_populate", func() error {
			_ = p.deps.Cache.Set(ctx, fp, fpNoQuery, queryEmbedding, indexName, cachedPayload{Results: results})
			return nil
		})
	}

	logger.Info("search complete", "query", query, "results", len(results))
	return results, counts, nil
}

// buildResults turns kept fused hits into presentation Results. With
// smart_context on (the default), a hit whose enclosing definition is
// wider than its chunk gets its content and line_range/byte_range widened
// to that definition's full extent (SPEC_FULL.md's seed scenario 4: "file
// read at byte range of the enclosing node"), not just a separate
// before/after sidecar. Explicit context_before/context_after line counts
// take precedence over smart_context and always report alongside the
// chunk's own, unwidened content.
func (p *Pipeline) buildResults(kept []fusedHit, sourcePath string, opts Options, files *fileCache) ([]Result, error) {
	var expander *contextexpand.Expander
	if opts.SmartContext && opts.ContextBefore == 0 && opts.ContextAfter == 0 {
		var err error
		expander, err = contextexpand.New()
		if err != nil {
			return nil, fmt.Errorf("search: build context expander: %w", err)
		}
		defer expander.Close()
	}

	results := make([]Result, 0, len(kept))
	for _, f := range kept {
		h := f.hit
		r := Result{
			FilePath:        h.FilePath,
			ByteRange:       [2]int{h.StartByte, h.EndByte},
			LineRange:       [2]int{h.StartLine, h.EndLine},
			Score:           f.score,
			BlockType:       h.BlockType,
			Hierarchy:       h.Hierarchy,
			LanguageID:      h.LanguageID,
			SymbolType:      h.SymbolType,
			SymbolName:      h.SymbolName,
			SymbolSignature: h.SymbolSignature,
			MatchType:       f.matchType(),
		}
		if f.hasVectorScore {
			v := f.vectorScore
			r.VectorScore = &v
		}
		if f.hasKeywordScore {
			v := f.keywordScore
			r.KeywordScore = &v
		}

		switch {
		case opts.ContextBefore > 0 || opts.ContextAfter > 0:
			if text, ok := files.slice(h.FilePath, h.StartByte, h.EndByte); ok {
				r.Content = truncateLines(text)
			}
			content, ok := files.content(h.FilePath)
			if ok {
				r.ContextBefore = truncateLines(linesBefore(content, h.StartLine, opts.ContextBefore))
				r.ContextAfter = truncateLines(linesAfter(content, h.EndLine, opts.ContextAfter))
			}
		case opts.SmartContext && expander != nil && sourcePath != "":
			p.fillSmartContext(&r, expander, filepath.Join(sourcePath, h.FilePath), h, files)
		default:
			if text, ok := files.slice(h.FilePath, h.StartByte, h.EndByte); ok {
				r.Content = truncateLines(text)
			}
		}

		results = append(results, r)
	}
	return results, nil
}

// fillSmartContext expands h's byte range to its enclosing definition via
// expander and, when that range is wider than the chunk's own, widens the
// result's content and reported byte_range/line_range to match instead of
// reporting the expansion as separate context text.
func (p *Pipeline) fillSmartContext(r *Result, expander *contextexpand.Expander, absPath string, h store.Hit, files *fileCache) {
	content, ok := files.content(h.FilePath)
	if !ok {
		return
	}

	expanded, err := expander.Expand(absPath, contextexpand.ByteRange{Start: h.StartByte, End: h.EndByte}, h.LanguageID)
	if err != nil || (expanded.Start == h.StartByte && expanded.End == h.EndByte) {
		if text, ok := files.slice(h.FilePath, h.StartByte, h.EndByte); ok {
			r.Content = truncateLines(text)
		}
		return
	}

	if expanded.Start < 0 || expanded.End > len(content) || expanded.Start > expanded.End {
		return
	}
	r.Content = truncateLines(string(content[expanded.Start:expanded.End]))
	r.ByteRange = [2]int{expanded.Start, expanded.End}
	r.LineRange = [2]int{lineNumber(content, expanded.Start), lineNumber(content, expanded.End)}
}

// fileCache reads each source file under sourcePath at most once per
// search call, shared by the definition-boost readText closure and
// buildResults' content/smart-context reads. Grounded on the same
// per-call, not process-lifetime, file cache the Context Expander keeps
// (internal/contextexpand.Expander).
type fileCache struct {
	sourcePath string
	mu         sync.Mutex
	files      map[string][]byte
}

func newFileCache(sourcePath string) *fileCache {
	return &fileCache{sourcePath: sourcePath, files: map[string][]byte{}}
}

func (c *fileCache) content(relPath string) ([]byte, bool) {
	if c.sourcePath == "" {
		return nil, false
	}
	c.mu.Lock()
	data, ok := c.files[relPath]
	c.mu.Unlock()
	if ok {
		return data, true
	}

	data, err := os.ReadFile(filepath.Join(c.sourcePath, relPath))
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	c.files[relPath] = data
	c.mu.Unlock()
	return data, true
}

func (c *fileCache) slice(relPath string, start, end int) (string, bool) {
	content, ok := c.content(relPath)
	if !ok || start < 0 || end > len(content) || start > end {
		return "", false
	}
	return string(content[start:end]), true
}

// lineNumber returns the 1-based line number containing byte offset in
// content.
func lineNumber(content []byte, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	if offset < 0 {
		offset = 0
	}
	return strings.Count(string(content[:offset]), "\n") + 1
}

func (p *Pipeline) sourcePathFor(indexName string) (string, error) {
	meta, err := p.deps.Store.Meta(indexName)
	if err != nil {
		return "", err
	}
	return meta.SourcePath, nil
}

func (p *Pipeline) resolveLanguageFilter(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, nil
	}
	resolved := make([]string, 0, len(requested))
	for _, id := range requested {
		h, ok := p.deps.Languages.HandlerFor(id)
		if !ok {
			return nil, cerr.NewQueryError(id, fmt.Errorf("unknown language"))
		}
		resolved = append(resolved, h.ID)
	}
	return resolved, nil
}

// validSymbolGlobChars matches SPEC_FULL.md §6's supported glob alphabet
// ('*', '?', plus ordinary identifier characters); anything else (bracket
// classes, character ranges) is rejected before it reaches the store. '%'
// is allowed through: it is not a glob metacharacter here, just a literal
// identifier byte, and store.globToLike's round-trip law (§8) requires a
// literal '%' to be escaped rather than rejected.
var validSymbolGlobChars = regexp.MustCompile(`^[A-Za-z0-9_.%\-*?]*$`)

func validateSymbolGlob(glob string) error {
	if glob == "" {
		return nil
	}
	if !validSymbolGlobChars.MatchString(glob) {
		return cerr.NewQueryError(glob, fmt.Errorf("unsupported glob metacharacter"))
	}
	return nil
}

// identifierPattern recognizes camelCase, PascalCase, or snake_case tokens,
// the sole signal decideMode uses to run the lexical arm under "auto"
// (SPEC_FULL.md §4.7's use_hybrid=auto heuristic): a query with no
// identifier-pattern token never runs the lexical arm under auto, even if
// it has several plain words.
var identifierPattern = regexp.MustCompile(`[a-z][A-Z]|_`)

func decideMode(mode HybridMode, query string) bool {
	switch mode {
	case HybridOn:
		return true
	case HybridOff:
		return false
	default:
		return identifierPattern.MatchString(query)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func track(rec *timing.Recorder, name string, fn func() error) error {
	if rec == nil {
		return fn()
	}
	return rec.Track(name, fn)
}

// truncateLines enforces the returned-content caps: at most
// MaxContentLines lines, each truncated to MaxContentColumns with an
// ellipsis (SPEC_FULL.md §4.7 stage 10 / §6).
func truncateLines(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	truncated := false
	if len(lines) > MaxContentLines {
		lines = lines[:MaxContentLines]
		truncated = true
	}
	for i, line := range lines {
		if len(line) > MaxContentColumns {
			lines[i] = line[:MaxContentColumns-1] + "…"
		}
	}
	out := strings.Join(lines, "\n")
	if truncated {
		out += "\n…"
	}
	return out
}

// linesBefore returns up to n whole lines immediately preceding startLine
// (1-based, exclusive) in content.
func linesBefore(content []byte, startLine, n int) string {
	if n <= 0 {
		return ""
	}
	all := strings.Split(string(content), "\n")
	from := startLine - 1 - n
	to := startLine - 1
	if from < 0 {
		from = 0
	}
	if to > len(all) {
		to = len(all)
	}
	if from >= to {
		return ""
	}
	return strings.Join(all[from:to], "\n")
}

// linesAfter returns up to n whole lines immediately following endLine
// (1-based, inclusive) in content.
func linesAfter(content []byte, endLine, n int) string {
	if n <= 0 {
		return ""
	}
	all := strings.Split(string(content), "\n")
	from := endLine
	to := endLine + n
	if from < 0 {
		from = 0
	}
	if from > len(all) {
		from = len(all)
	}
	if to > len(all) {
		to = len(all)
	}
	if from >= to {
		return ""
	}
	return strings.Join(all[from:to], "\n")
}
