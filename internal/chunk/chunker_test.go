package chunk

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSeparators(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func TestSplit_EmptyFile(t *testing.T) {
	chunks := Split(nil, nil, DefaultConfig())
	assert.Empty(t, chunks)
}

func TestSplit_SmallerThanTarget(t *testing.T) {
	content := []byte("package main\n\nfunc main() {}\n")
	chunks := Split(content, nil, DefaultConfig())
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(content), chunks[0].End)
	assert.Equal(t, content, chunks[0].Text)
}

func TestSplit_NonUTF8BytesDoNotError(t *testing.T) {
	content := append([]byte("package main\nfunc main(){}\n"), 0xff, 0xfe, 0x00)
	content = bytes.Repeat(content, 60) // push past target size
	chunks := Split(content, nil, DefaultConfig())
	assert.NotEmpty(t, chunks)
}

func TestSplit_OverlapBetweenChunks(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 80; i++ {
		b.WriteString("func handler")
		b.WriteString(string(rune('A' + i%26)))
		b.WriteString("() {\n\treturn nil\n}\n\n")
	}
	content := []byte(b.String())

	sep := mustSeparators(`(?m)^func\s`)
	chunks := Split(content, sep, Config{Target: 200, Overlap: 50, Min: 100})

	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].Start, chunks[i-1].End, "chunk %d should start at or before previous chunk's end (overlap)", i)
	}
	assert.Equal(t, len(content), chunks[len(chunks)-1].End)
}

func TestSplit_HardSplitWhenNoSeparatorFits(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 5000)
	chunks := Split(content, nil, Config{Target: 1000, Overlap: 300, Min: 500})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.End-c.Start, 1000)
	}
}
