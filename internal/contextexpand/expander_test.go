package contextexpand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.go")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExpand_GrowsToEnclosingFunction(t *testing.T) {
	src := "package main\n\nfunc Greet(name string) string {\n\tmsg := \"hello \" + name\n\treturn msg\n}\n"
	path := writeTempFile(t, src)

	// byteRange covers just the `msg := ...` line, inside Greet's body.
	start := len("package main\n\nfunc Greet(name string) string {\n\t")
	end := start + len("msg := \"hello \" + name")

	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	expanded, err := e.Expand(path, ByteRange{Start: start, End: end}, "go")
	require.NoError(t, err)

	// The function_declaration node ends at its closing brace; the file's
	// trailing newline belongs to the enclosing source_file, not to Greet.
	funcStart := len("package main\n\n")
	assert.Equal(t, funcStart, expanded.Start)
	assert.Equal(t, len(src)-len("\n"), expanded.End)
}

func TestExpand_UnknownLanguageReturnsInputUnchanged(t *testing.T) {
	path := writeTempFile(t, "anything at all")

	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	in := ByteRange{Start: 2, End: 6}
	out, err := e.Expand(path, in, "cobol")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestExpand_CapsToFiftyLinesCenteredOnMatch(t *testing.T) {
	var src string
	src += "package main\n\nfunc Big() {\n"
	matchLineIdx := 40
	matchStart, matchEnd := 0, 0
	for i := 0; i < 100; i++ {
		line := "\tx := 1\n"
		if i == matchLineIdx {
			matchStart = len(src)
			matchEnd = matchStart + len("\tx := 1")
		}
		src += line
	}
	src += "}\n"
	path := writeTempFile(t, src)

	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	expanded, err := e.Expand(path, ByteRange{Start: matchStart, End: matchEnd}, "go")
	require.NoError(t, err)

	lineCount := lineOf([]byte(src), expanded.End) - lineOf([]byte(src), expanded.Start) + 1
	assert.LessOrEqual(t, lineCount, maxExpandedLines)
}

func TestExpand_CachesParsedFileAcrossCalls(t *testing.T) {
	src := "package main\n\nfunc A() {\n\t_ = 1\n}\n\nfunc B() {\n\t_ = 2\n}\n"
	path := writeTempFile(t, src)

	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	aStart := len("package main\n\nfunc A() {\n\t")
	_, err = e.Expand(path, ByteRange{Start: aStart, End: aStart + 5}, "go")
	require.NoError(t, err)

	require.Len(t, e.parsed, 1)

	bStart := len("package main\n\nfunc A() {\n\t_ = 1\n}\n\nfunc B() {\n\t")
	_, err = e.Expand(path, ByteRange{Start: bStart, End: bStart + 5}, "go")
	require.NoError(t, err)

	assert.Len(t, e.parsed, 1, "second Expand call on the same file should reuse the cached parse")
}
