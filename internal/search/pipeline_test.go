package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VioletCranberry/cocosearch/internal/cache"
	"github.com/VioletCranberry/cocosearch/internal/embed"
	"github.com/VioletCranberry/cocosearch/internal/indexpipeline"
	"github.com/VioletCranberry/cocosearch/internal/lang"
	"github.com/VioletCranberry/cocosearch/internal/store"
	"github.com/VioletCranberry/cocosearch/internal/symbol"
)

// sampleSource puts sum first and pads GreetUser's comment well past the
// chunker's 1000-byte target so GreetUser and sum land in separate chunks,
// letting the smart context and symbol-assignment tests target a specific
// function.
var sampleSource = "package main\n\n" +
	"func sum(a, b int) int {\n\treturn a + b\n}\n\n" +
	"// " + strings.Repeat("x", 1000) + "\n" +
	"func GreetUser(name string) string {\n\treturn \"hello \" + name\n}\n"

func newHarness(t *testing.T) (*Pipeline, *store.Store, string) {
	t.Helper()

	langRegistry, err := lang.NewRegistry(lang.Default())
	require.NoError(t, err)
	symbolRegistry, err := symbol.NewRegistry()
	require.NoError(t, err)

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	provider := embed.NewMockProvider()
	c := cache.New()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(sampleSource), 0o644))

	ip := indexpipeline.New(indexpipeline.Deps{
		Store:     st,
		Embedder:  provider,
		Languages: langRegistry,
		Symbols:   symbolRegistry,
		Cache:     c,
	})
	_, err = ip.Run(context.Background(), "proj", root, indexpipeline.Options{})
	require.NoError(t, err)
	require.NoError(t, st.SetSourcePath("proj", root))

	sp := New(Deps{
		Store:     st,
		Embedder:  provider,
		Languages: langRegistry,
		Cache:     c,
	})
	return sp, st, root
}

func TestSearch_KeywordArmFindsIdentifierMatch(t *testing.T) {
	sp, _, _ := newHarness(t)

	results, err := sp.Search(context.Background(), "proj", "GreetUser", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var found bool
	for _, r := range results {
		if r.SymbolName == "GreetUser" {
			found = true
			assert.Equal(t, "function", r.SymbolType)
			assert.Contains(t, []MatchType{MatchBoth, MatchKeyword}, r.MatchType)
		}
	}
	assert.True(t, found, "expected GreetUser among results: %+v", results)
}

func TestSearch_DefinitionBoostOutranksPlainRRF(t *testing.T) {
	sp, _, _ := newHarness(t)

	results, err := sp.Search(context.Background(), "proj", "GreetUser hello name", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	// The function's own definition chunk should be boosted relative to an
	// identical-keyword-score non-definition chunk, if one exists.
	assert.Equal(t, "function", results[0].SymbolType)
}

func TestSearch_ExactRepeatQueryIsCacheConsistent(t *testing.T) {
	sp, _, _ := newHarness(t)

	first, err := sp.Search(context.Background(), "proj", "sum", DefaultOptions())
	require.NoError(t, err)
	second, err := sp.Search(context.Background(), "proj", "sum", DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SymbolName, second[i].SymbolName)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestSearch_BypassCacheStillReturnsResults(t *testing.T) {
	sp, _, _ := newHarness(t)

	opts := DefaultOptions()
	opts.BypassCache = true
	results, err := sp.Search(context.Background(), "proj", "sum", opts)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestAnalyze_ReportsStageTimingsAndCounts(t *testing.T) {
	sp, _, _ := newHarness(t)

	report, err := sp.Analyze(context.Background(), "proj", "GreetUser", DefaultOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, report.Results)
	assert.NotEmpty(t, report.Stages)
	assert.Contains(t, report.Counts, "vector_hits")
}

func TestSearch_SmartContextExpandsToEnclosingFunction(t *testing.T) {
	sp, _, _ := newHarness(t)

	opts := DefaultOptions()
	opts.Limit = 5
	results, err := sp.Search(context.Background(), "proj", "sum", opts)
	require.NoError(t, err)

	var sumResult *Result
	for i := range results {
		if results[i].SymbolName == "sum" {
			sumResult = &results[i]
		}
	}
	require.NotNil(t, sumResult)
	assert.Contains(t, sumResult.Content, "return a + b")
}

// newWideFunctionHarness builds a single function long enough (past the
// chunker's 1000-byte target, with no internal blank line separator) that
// it lands in more than one chunk, none of which alone spans the whole
// function body. This is what TestSearch_SmartContextExpandsToEnclosingFunction
// could not exercise: there, sum fits in one chunk, so expansion never
// actually widens anything.
func newWideFunctionHarness(t *testing.T) (*Pipeline, string) {
	t.Helper()

	langRegistry, err := lang.NewRegistry(lang.Default())
	require.NoError(t, err)
	symbolRegistry, err := symbol.NewRegistry()
	require.NoError(t, err)

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	provider := embed.NewMockProvider()
	c := cache.New()

	var body strings.Builder
	body.WriteString("package main\n\nfunc bigFunc(x int) int {\n")
	for i := 1; i <= 40; i++ {
		body.WriteString(fmt.Sprintf("\tx = x + 1 // zzzstepmarker%02d\n", i))
	}
	body.WriteString("\treturn x\n}\n")

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(body.String()), 0o644))

	ip := indexpipeline.New(indexpipeline.Deps{
		Store:     st,
		Embedder:  provider,
		Languages: langRegistry,
		Symbols:   symbolRegistry,
		Cache:     c,
	})
	_, err = ip.Run(context.Background(), "wide", root, indexpipeline.Options{})
	require.NoError(t, err)
	require.NoError(t, st.SetSourcePath("wide", root))

	sp := New(Deps{
		Store:     st,
		Embedder:  provider,
		Languages: langRegistry,
		Cache:     c,
	})
	return sp, root
}

func TestSearch_SmartContextWidensChunkNarrowerThanEnclosingFunction(t *testing.T) {
	sp, _ := newWideFunctionHarness(t)

	opts := DefaultOptions()
	opts.UseHybrid = HybridOn
	opts.Limit = 5
	results, err := sp.Search(context.Background(), "wide", "zzzstepmarker02", opts)
	require.NoError(t, err)

	var hit *Result
	for i := range results {
		if results[i].SymbolName == "bigFunc" {
			hit = &results[i]
			break
		}
	}
	require.NotNil(t, hit, "expected a bigFunc chunk among results: %+v", results)

	assert.Contains(t, hit.Content, "zzzstepmarker02", "matched chunk's own text must still be present after widening")
	assert.Contains(t, hit.Content, "return x", "smart context must widen content to the whole enclosing function, not leave it at the matched chunk's own narrower range")
	assert.Greater(t, hit.LineRange[1]-hit.LineRange[0], 20, "expanded line_range must span well beyond one narrow chunk")
}

func TestSearch_LanguageFilterResolvesKnownID(t *testing.T) {
	sp, _, _ := newHarness(t)

	opts := DefaultOptions()
	opts.LanguageFilter = []string{"go"}
	results, err := sp.Search(context.Background(), "proj", "sum", opts)
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	opts.LanguageFilter = []string{"not-a-real-language"}
	_, err = sp.Search(context.Background(), "proj", "sum", opts)
	assert.Error(t, err)
}

func TestSearch_UseHybridOffSkipsKeywordArm(t *testing.T) {
	sp, _, _ := newHarness(t)

	opts := DefaultOptions()
	opts.UseHybrid = HybridOff
	results, err := sp.Search(context.Background(), "proj", "sum", opts)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, MatchKeyword, r.MatchType)
		assert.Nil(t, r.KeywordScore)
	}
}

func TestSearch_RejectsUnsupportedSymbolGlob(t *testing.T) {
	sp, _, _ := newHarness(t)

	opts := DefaultOptions()
	opts.SymbolNameFilter = "[abc]*"
	_, err := sp.Search(context.Background(), "proj", "sum", opts)
	assert.Error(t, err)
}

func TestSearch_AcceptsLiteralPercentInSymbolGlob(t *testing.T) {
	sp, _, _ := newHarness(t)

	opts := DefaultOptions()
	opts.SymbolNameFilter = "get%foo"
	_, err := sp.Search(context.Background(), "proj", "sum", opts)
	assert.NoError(t, err, "a literal '%%' must reach store.globToLike, which escapes it, rather than being rejected up front")
}
