// Package discovery enumerates the files an indexing run should consider,
// honoring include/exclude globs plus .gitignore rules. Grounded on the
// teacher's internal/indexer/discovery.go (FileDiscovery's glob-based
// filepath.Walk) combined with ChamsBouzaiene-dodo's internal/indexer/walker.go
// use of sabhiram/go-gitignore, since the teacher itself never consults
// .gitignore.
package discovery

import (
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultExcludes are always applied, in addition to any caller-supplied
// exclude patterns and .gitignore rules.
var defaultExcludes = []string{
	".git/**",
	"node_modules/**",
}

// Walker enumerates files under a root directory.
type Walker struct {
	rootDir  string
	includes []glob.Glob
	excludes []glob.Glob
	ignore   *gitignore.GitIgnore
}

// New compiles includePatterns/excludePatterns and loads rootDir's
// top-level .gitignore, if present. A caller passing no includePatterns
// matches every file not otherwise excluded.
func New(rootDir string, includePatterns, excludePatterns []string) (*Walker, error) {
	w := &Walker{rootDir: rootDir}

	for _, p := range includePatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		w.includes = append(w.includes, g)
	}

	for _, p := range append(append([]string{}, excludePatterns...), defaultExcludes...) {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		w.excludes = append(w.excludes, g)
	}

	lines, err := readLines(filepath.Join(rootDir, ".gitignore"))
	if err != nil {
		return nil, err
	}
	w.ignore = gitignore.CompileIgnoreLines(lines...)

	return w, nil
}

// Walk returns every regular file's path (relative to rootDir,
// slash-separated) that survives the include/exclude/.gitignore filters.
func (w *Walker) Walk() ([]string, error) {
	var files []string
	err := filepath.Walk(w.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == w.rootDir {
			return nil
		}

		rel, relErr := filepath.Rel(w.rootDir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if w.matchesAny(w.excludes, rel) || w.matchesAny(w.excludes, rel+"/**") || w.ignore.MatchesPath(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if w.matchesAny(w.excludes, rel) || w.ignore.MatchesPath(rel) {
			return nil
		}
		if len(w.includes) > 0 && !w.matchesAny(w.includes, rel) {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	return files, err
}

// matchesAny also tries path with a leading "/" so a "**/"-prefixed
// pattern matches files at the root as well as in subdirectories.
func (w *Walker) matchesAny(patterns []glob.Glob, path string) bool {
	for _, p := range patterns {
		if p.Match(path) || p.Match("/"+path) {
			return true
		}
	}
	return false
}

func readLines(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var lines []string
	start := 0
	for i, b := range content {
		if b == '\n' {
			lines = append(lines, string(content[start:i]))
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, string(content[start:]))
	}
	return lines, nil
}
