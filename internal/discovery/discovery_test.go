package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalk_HonorsIncludeAndExclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "README.md", "docs")
	writeFile(t, root, "vendor/lib.go", "package vendor")

	w, err := New(root, []string{"**/*.go"}, []string{"vendor/**"})
	require.NoError(t, err)

	files, err := w.Walk()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go"}, files)
}

func TestWalk_HonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "build/out.go", "package build")
	writeFile(t, root, ".gitignore", "build/\n")

	w, err := New(root, nil, nil)
	require.NoError(t, err)

	files, err := w.Walk()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", ".gitignore"}, files)
}

func TestWalk_AlwaysExcludesDotGit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main")

	w, err := New(root, nil, nil)
	require.NoError(t, err)

	files, err := w.Walk()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go"}, files)
}

func TestWalk_NoIncludesMatchesEverythingNotExcluded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "b.py", "b")

	w, err := New(root, nil, nil)
	require.NoError(t, err)

	files, err := w.Walk()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.py"}, files)
}
