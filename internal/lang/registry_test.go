package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	handlers, grammars := Default()
	r, err := NewRegistry(handlers, grammars)
	require.NoError(t, err)
	return r
}

func TestLanguageFor_ExtensionLookup(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, "python", r.LanguageFor("pkg/models/user.py", nil))
	assert.Equal(t, "go", r.LanguageFor("internal/foo/bar.go", nil))
	assert.Equal(t, "", r.LanguageFor("README.LICENSE", nil))
}

func TestLanguageFor_FilenameMatch(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, "dockerfile", r.LanguageFor("build/Dockerfile", nil))
}

func TestLanguageFor_Alias(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, "hcl", r.LanguageFor("main.tf", nil))
	h, ok := r.HandlerFor("terraform")
	require.True(t, ok)
	assert.Equal(t, "hcl", h.ID)
}

func TestLanguageFor_GrammarPriorityOverExtension(t *testing.T) {
	r := newTestRegistry(t)

	plainYAML := []byte("name: foo\nversion: 1\n")
	assert.Equal(t, "yaml", r.LanguageFor(".github/workflows/release.yaml", plainYAML))

	workflow := []byte("name: CI\non:\n  push:\njobs:\n  build:\n    runs-on: ubuntu-latest\n")
	assert.Equal(t, "github-actions-workflow", r.LanguageFor(".github/workflows/release.yaml", workflow))
}

func TestHandlerFor_UnknownReturnsFalse(t *testing.T) {
	r := newTestRegistry(t)
	_, ok := r.HandlerFor("cobol")
	assert.False(t, ok)
}

func TestNewRegistry_DuplicateHandlerIDRejected(t *testing.T) {
	_, err := NewRegistry([]*Handler{{ID: "go"}, {ID: "go"}}, nil)
	require.Error(t, err)
}

func TestExtractor_GoFunctionAndMethod(t *testing.T) {
	r := newTestRegistry(t)
	ex := r.Extractor("go")
	require.NotNil(t, ex)

	meta := ex([]byte("func DoThing(x int) error {\n\treturn nil\n}\n"), "go")
	assert.Equal(t, "function", meta.BlockType)
	assert.Equal(t, "DoThing", meta.Hierarchy)

	meta = ex([]byte("func (s *Service) Fetch(id string) (*User, error) {\n\treturn nil, nil\n}\n"), "go")
	assert.Equal(t, "method", meta.BlockType)
	assert.Equal(t, "Service.Fetch", meta.Hierarchy)
}

func TestExtractor_HCLDottedHierarchy(t *testing.T) {
	r := newTestRegistry(t)
	ex := r.Extractor("hcl")
	require.NotNil(t, ex)

	meta := ex([]byte(`resource "aws_s3_bucket" "data" {
  bucket = "my-bucket"
}
`), "hcl")
	assert.Equal(t, "resource", meta.BlockType)
	assert.Equal(t, "resource.aws_s3_bucket.data", meta.Hierarchy)
}
