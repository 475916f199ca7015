package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VioletCranberry/cocosearch/internal/cerr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func vec(dims int, fill float32) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestEnsureSchema_CreatesAllCapabilities(t *testing.T) {
	s := newTestStore(t)
	caps, err := s.EnsureSchema("proj", 8)
	require.NoError(t, err)
	assert.True(t, caps.HasContentTSV)
	assert.True(t, caps.HasSymbolColumns)
	assert.True(t, caps.HasParseResults)
}

func TestConn_UnknownIndexReturnsSentinel(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RowCounts("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerr.ErrUnknownIndex))
}

func TestUpsertAndSearch_VectorAndKeyword(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EnsureSchema("proj", 4)
	require.NoError(t, err)

	records := []ChunkRecord{
		{
			FilePath: "a.go", LanguageID: "go", SymbolType: "function", SymbolName: "DoThing",
			StartByte: 0, EndByte: 40, StartLine: 1, EndLine: 3,
			ContentTokens: "DoThing Do Thing function", Embedding: vec(4, 1.0), FileContentHash: "h1",
		},
		{
			FilePath: "b.go", LanguageID: "go", SymbolType: "function", SymbolName: "OtherThing",
			StartByte: 0, EndByte: 40, StartLine: 1, EndLine: 3,
			ContentTokens: "OtherThing unrelated text", Embedding: vec(4, -1.0), FileContentHash: "h2",
		},
	}
	require.NoError(t, s.UpsertChunks("proj", records))

	vHits, err := s.VectorSearch("proj", vec(4, 1.0), Filters{}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, vHits)
	assert.Equal(t, "DoThing", vHits[0].SymbolName)

	kHits, err := s.KeywordSearch("proj", "DoThing", Filters{}, 5)
	require.NoError(t, err)
	require.Len(t, kHits, 1)
	assert.Equal(t, "a.go", kHits[0].FilePath)
}

func TestUpsertChunks_ReplacesPerFile(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EnsureSchema("proj", 2)
	require.NoError(t, err)

	require.NoError(t, s.UpsertChunks("proj", []ChunkRecord{
		{FilePath: "a.go", StartByte: 0, EndByte: 10, ContentTokens: "old", Embedding: vec(2, 0.1), FileContentHash: "h1"},
	}))
	require.NoError(t, s.UpsertChunks("proj", []ChunkRecord{
		{FilePath: "a.go", StartByte: 0, EndByte: 20, ContentTokens: "new", Embedding: vec(2, 0.2), FileContentHash: "h2"},
	}))

	files, err := s.ListFiles("proj")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, files)

	counts, err := s.RowCounts("proj")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ChunkCount)
}

func TestFilters_SymbolNameGlob(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EnsureSchema("proj", 2)
	require.NoError(t, err)

	require.NoError(t, s.UpsertChunks("proj", []ChunkRecord{
		{FilePath: "a.go", SymbolName: "GetUser", ContentTokens: "get user", StartByte: 0, EndByte: 5, Embedding: vec(2, 1), FileContentHash: "h"},
		{FilePath: "b.go", SymbolName: "SetUser", ContentTokens: "set user", StartByte: 0, EndByte: 5, Embedding: vec(2, 1), FileContentHash: "h"},
	}))

	hits, err := s.VectorSearch("proj", vec(2, 1), Filters{SymbolNameGlob: "Get*"}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "GetUser", hits[0].SymbolName)
}

func TestGlobToLike_EscapesLiteralPercentAndUnderscore(t *testing.T) {
	assert.Equal(t, `100\% done`, globToLike("100% done"))
	assert.Equal(t, `a\_b`, globToLike("a_b"))
	assert.Equal(t, `Get%`, globToLike("Get*"))
	assert.Equal(t, `Get_ser`, globToLike("Get?ser"))
}

func TestDropIndex_RemovesDatabase(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EnsureSchema("proj", 2)
	require.NoError(t, err)

	require.NoError(t, s.DropIndex("proj"))

	_, err = s.RowCounts("proj")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerr.ErrUnknownIndex))
}

func TestListIndexes_ReturnsEveryCreatedIndex(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EnsureSchema("alpha", 2)
	require.NoError(t, err)
	_, err = s.EnsureSchema("beta", 2)
	require.NoError(t, err)

	names, err := s.ListIndexes()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
}

func TestRecordAndListParseResults(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EnsureSchema("proj", 2)
	require.NoError(t, err)

	require.NoError(t, s.RecordParseResult("proj", ParseResult{
		FilePath: "a.go", LanguageID: "go", Status: StatusOK,
	}))
	require.NoError(t, s.RecordParseResult("proj", ParseResult{
		FilePath: "b.rs", LanguageID: "rust", Status: StatusError, ErrorCount: 2, ErrorMessage: "unexpected token",
	}))

	results, err := s.ParseResults("proj")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	breakdown, err := s.ParseHealthBreakdown("proj")
	require.NoError(t, err)
	assert.Equal(t, 1, breakdown[StatusOK]["go"])
	assert.Equal(t, 1, breakdown[StatusError]["rust"])
}

func TestLanguageAndSymbolBreakdown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EnsureSchema("proj", 2)
	require.NoError(t, err)

	require.NoError(t, s.UpsertChunks("proj", []ChunkRecord{
		{FilePath: "a.go", LanguageID: "go", SymbolType: "function", StartByte: 0, EndByte: 5, Embedding: vec(2, 1), FileContentHash: "h"},
		{FilePath: "b.py", LanguageID: "python", SymbolType: "function", StartByte: 0, EndByte: 5, Embedding: vec(2, 1), FileContentHash: "h"},
		{FilePath: "c.go", LanguageID: "go", SymbolType: "type", StartByte: 0, EndByte: 5, Embedding: vec(2, 1), FileContentHash: "h"},
	}))

	langs, err := s.LanguageBreakdown("proj")
	require.NoError(t, err)
	assert.Equal(t, 2, langs["go"])
	assert.Equal(t, 1, langs["python"])

	symbols, err := s.SymbolBreakdown("proj")
	require.NoError(t, err)
	assert.Equal(t, 2, symbols["function"])
	assert.Equal(t, 1, symbols["type"])
}
