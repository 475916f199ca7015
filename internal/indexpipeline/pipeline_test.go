package indexpipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VioletCranberry/cocosearch/internal/cache"
	"github.com/VioletCranberry/cocosearch/internal/embed"
	"github.com/VioletCranberry/cocosearch/internal/lang"
	"github.com/VioletCranberry/cocosearch/internal/store"
	"github.com/VioletCranberry/cocosearch/internal/symbol"
)

func newPipeline(t *testing.T) (*Pipeline, *store.Store, *embed.MockProvider) {
	t.Helper()

	langRegistry, err := lang.NewRegistry(lang.Default())
	require.NoError(t, err)

	symbolRegistry, err := symbol.NewRegistry()
	require.NoError(t, err)

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	provider := embed.NewMockProvider()

	p := New(Deps{
		Store:     st,
		Embedder:  provider,
		Languages: langRegistry,
		Symbols:   symbolRegistry,
		Cache:     cache.New(),
	})
	return p, st, provider
}

func writeSourceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRun_IndexesFilesAndRecordsParseResults(t *testing.T) {
	p, st, _ := newPipeline(t)
	root := t.TempDir()
	writeSourceFile(t, root, "main.go", "package main\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n")
	writeSourceFile(t, root, "README.md", "# docs\n")

	result, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesScanned)
	assert.Equal(t, 2, result.FilesIndexed)
	assert.Greater(t, result.ChunksWritten, 0)

	parseResults, err := st.ParseResults("proj")
	require.NoError(t, err)
	assert.Len(t, parseResults, 2)

	var sawGo, sawMd bool
	for _, r := range parseResults {
		if r.FilePath == "main.go" {
			sawGo = true
			assert.Equal(t, "ok", r.Status)
		}
		if r.FilePath == "README.md" {
			sawMd = true
			assert.Equal(t, "no_grammar", r.Status)
		}
	}
	assert.True(t, sawGo)
	assert.True(t, sawMd)
}

func TestRun_SkipsUnchangedFileOnSecondRun(t *testing.T) {
	p, _, _ := newPipeline(t)
	root := t.TempDir()
	writeSourceFile(t, root, "main.go", "package main\n\nfunc A() {}\n")

	_, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Equal(t, 0, result.FilesIndexed)
}

func TestRun_ReindexesChangedFile(t *testing.T) {
	p, st, _ := newPipeline(t)
	root := t.TempDir()
	writeSourceFile(t, root, "main.go", "package main\n\nfunc A() {}\n")
	_, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)

	writeSourceFile(t, root, "main.go", "package main\n\nfunc A() {}\n\nfunc B() {}\n")
	result, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)

	counts, err := st.RowCounts("proj")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.FileCount)
}

func TestRun_DeletesChunksForRemovedFile(t *testing.T) {
	p, st, _ := newPipeline(t)
	root := t.TempDir()
	writeSourceFile(t, root, "a.go", "package main\n\nfunc A() {}\n")
	writeSourceFile(t, root, "b.go", "package main\n\nfunc B() {}\n")
	_, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))

	result, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesDeleted)

	files, err := st.ListFiles("proj")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.go"}, files)
}

func TestRun_AssignsSymbolMetadataToEnclosingChunk(t *testing.T) {
	p, st, _ := newPipeline(t)
	root := t.TempDir()
	writeSourceFile(t, root, "main.go", "package main\n\nfunc Greet(name string) string {\n\treturn \"hi \" + name\n}\n")

	_, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)

	counts, err := st.SymbolBreakdown("proj")
	require.NoError(t, err)
	assert.Equal(t, 1, counts["function"])
}

func TestRun_AbortsOnEmbedderFailureLeavingPriorFilesCommitted(t *testing.T) {
	p, st, provider := newPipeline(t)
	root := t.TempDir()
	writeSourceFile(t, root, "a.go", "package main\n\nfunc A() {}\n")
	writeSourceFile(t, root, "b.go", "package main\n\nfunc B() {}\n")

	_, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)

	writeSourceFile(t, root, "a.go", "package main\n\nfunc A() { _ = 1 }\n")
	writeSourceFile(t, root, "c.go", "package main\n\nfunc C() {}\n")
	provider.SetEmbedError(assertError{"embedder down"})

	_, err = p.Run(context.Background(), "proj", root, Options{})
	assert.Error(t, err)

	files, err := st.ListFiles("proj")
	require.NoError(t, err)
	assert.Contains(t, files, "b.go")
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

func TestRun_HonorsIncludeExcludeGlobs(t *testing.T) {
	p, st, _ := newPipeline(t)
	root := t.TempDir()
	writeSourceFile(t, root, "main.go", "package main\n\nfunc A() {}\n")
	writeSourceFile(t, root, "vendor/lib.go", "package vendor\n")

	_, err := p.Run(context.Background(), "proj", root, Options{ExcludeGlobs: []string{"vendor/**"}})
	require.NoError(t, err)

	files, err := st.ListFiles("proj")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go"}, files)
}

func TestRun_EmptyFileProducesZeroChunksAndOkParseResult(t *testing.T) {
	p, st, _ := newPipeline(t)
	root := t.TempDir()
	writeSourceFile(t, root, "empty.go", "")

	_, err := p.Run(context.Background(), "proj", root, Options{})
	require.NoError(t, err)

	results, err := st.ParseResults("proj")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Status)

	counts, err := st.RowCounts("proj")
	require.NoError(t, err)
	assert.Equal(t, 0, counts.ChunkCount)
}
