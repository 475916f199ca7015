// Package contextexpand implements the Context Expander (SPEC_FULL.md
// §4.9): it grows a chunk's byte range to its smallest enclosing
// function/class/block using the syntax tree, capped to 50 lines. Grounded
// on the teacher's internal/graph/context.go (ContextExtractor's
// byte-window-then-line-clamp algorithm, the "// Lines %d-%d" prefix
// convention) and internal/graph/searcher.go's otter file cache, adapted
// here to cache parsed syntax trees instead of raw file lines and scoped
// to the lifetime of one search call instead of the process.
package contextexpand

import (
	"fmt"
	"os"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"github.com/maypok86/otter"

	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// maxExpandedLines caps the returned range, per SPEC_FULL.md §4.9.
const maxExpandedLines = 50

// fileCacheSize bounds the parsed-file LRU; the cache is built fresh per
// search call and cleared at its end, so this is an upper bound on files
// touched by one call, not a process-lifetime budget.
const fileCacheSize = 128

// ByteRange is a half-open [Start, End) byte offset pair.
type ByteRange struct {
	Start int
	End   int
}

// definitionNodes lists, per language_id, the node kinds a caller would
// recognize as "the enclosing function/class/block" (SPEC_FULL.md's
// DEFINITION_NODES). Languages absent here fall back to the unchanged
// input range.
var definitionNodes = map[string]map[string]bool{
	"go": kinds("function_declaration", "method_declaration", "type_declaration"),
	"python": kinds("function_definition", "class_definition"),
	"typescript": kinds("function_declaration", "method_definition", "class_declaration", "interface_declaration"),
	"javascript": kinds("function_declaration", "generator_function_declaration", "method_definition", "class_declaration"),
	"rust": kinds("function_item", "impl_item", "trait_item", "struct_item", "enum_item"),
	"java": kinds("method_declaration", "constructor_declaration", "class_declaration", "interface_declaration", "enum_declaration", "record_declaration"),
	"c": kinds("function_definition", "struct_specifier", "enum_specifier"),
	"php": kinds("function_definition", "method_declaration", "class_declaration", "interface_declaration", "trait_declaration"),
	"ruby": kinds("method", "singleton_method", "class", "module"),
}

func kinds(values ...string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

var languages = map[string]*sitter.Language{
	"go":         sitter.NewLanguage(tree_sitter_go.Language()),
	"python":     sitter.NewLanguage(tree_sitter_python.Language()),
	"typescript": sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
	"javascript": sitter.NewLanguage(tree_sitter_javascript.Language()),
	"rust":       sitter.NewLanguage(tree_sitter_rust.Language()),
	"java":       sitter.NewLanguage(tree_sitter_java.Language()),
	"c":          sitter.NewLanguage(tree_sitter_c.Language()),
	"php":        sitter.NewLanguage(tree_sitter_php.LanguagePHP()),
	"ruby":       sitter.NewLanguage(tree_sitter_ruby.Language()),
}

// Expander grows chunk byte ranges to their smallest enclosing
// definition. One Expander is created per search call (New) and Closed
// when the call finishes; its file cache never outlives a single call.
type Expander struct {
	fileCache otter.Cache[string, *parsedFile]

	mu     sync.Mutex
	parsed []*parsedFile // every tree this Expander has parsed, for Close
}

type parsedFile struct {
	source []byte
	tree   *sitter.Tree
}

// New creates an Expander scoped to one search call.
func New() (*Expander, error) {
	cache, err := otter.MustBuilder[string, *parsedFile](fileCacheSize).
		Cost(func(key string, value *parsedFile) uint32 { return 1 }).
		Build()
	if err != nil {
		return nil, fmt.Errorf("contextexpand: build file cache: %w", err)
	}
	return &Expander{fileCache: cache}, nil
}

// Close releases every syntax tree this Expander has parsed, whether or
// not it is still resident in the file cache (otter may have evicted it
// already). Call at the end of the search call that created this
// Expander, per SPEC_FULL.md §4.9's "cleared at search completion"
// requirement.
func (e *Expander) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, pf := range e.parsed {
		pf.tree.Close()
	}
	e.parsed = nil
	e.fileCache.Clear()
	e.fileCache.Close()
}

// Expand grows byteRange to the smallest enclosing DEFINITION_NODES
// member for languageID, then caps the result to maxExpandedLines,
// centered on the original range. If languageID has no grammar, or no
// enclosing definition is found, byteRange is returned unchanged (still
// subject to the line cap, since the caller's raw match can itself
// exceed it).
func (e *Expander) Expand(filePath string, byteRange ByteRange, languageID string) (ByteRange, error) {
	lang, ok := languages[languageID]
	if !ok {
		source, err := os.ReadFile(filePath)
		if err != nil {
			return byteRange, fmt.Errorf("contextexpand: read %s: %w", filePath, err)
		}
		return capToLines(source, byteRange, byteRange), nil
	}

	pf, err := e.parsedFileFor(filePath, lang)
	if err != nil {
		return byteRange, err
	}

	nodeKinds := definitionNodes[languageID]
	expanded := byteRange
	if len(nodeKinds) > 0 {
		if enclosing := smallestEnclosing(pf.tree.RootNode(), byteRange, nodeKinds); enclosing != nil {
			expanded = ByteRange{Start: int(enclosing.StartByte()), End: int(enclosing.EndByte())}
		}
	}

	return capToLines(pf.source, expanded, byteRange), nil
}

func (e *Expander) parsedFileFor(filePath string, lang *sitter.Language) (*parsedFile, error) {
	if pf, ok := e.fileCache.Get(filePath); ok {
		return pf, nil
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("contextexpand: read %s: %w", filePath, err)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("contextexpand: set language for %s: %w", filePath, err)
	}
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("contextexpand: parse %s: empty tree", filePath)
	}

	pf := &parsedFile{source: source, tree: tree}
	e.mu.Lock()
	e.parsed = append(e.parsed, pf)
	e.mu.Unlock()
	e.fileCache.Set(filePath, pf)
	return pf, nil
}

// smallestEnclosing walks down from root, descending into whichever
// child's range fully contains byteRange, and returns the narrowest node
// visited along that path whose kind is in nodeKinds. Grounded on the
// teacher pack's manual ChildCount/Child tree-walk style
// (internal/parser/unified_extractor.go) rather than an indexed
// descendant-lookup call, since none of the examples exercise one.
func smallestEnclosing(node *sitter.Node, byteRange ByteRange, nodeKinds map[string]bool) *sitter.Node {
	if node == nil {
		return nil
	}
	if int(node.StartByte()) > byteRange.Start || int(node.EndByte()) < byteRange.End {
		return nil
	}

	var best *sitter.Node
	if nodeKinds[node.Kind()] {
		best = node
	}

	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if int(child.StartByte()) <= byteRange.Start && int(child.EndByte()) >= byteRange.End {
			if deeper := smallestEnclosing(child, byteRange, nodeKinds); deeper != nil {
				best = deeper
			}
			break
		}
	}

	return best
}

// capToLines clamps expanded to at most maxExpandedLines, centered on
// original, per SPEC_FULL.md §4.9 ("when capping, center on the original
// match"). Line boundaries are computed by counting newlines in source,
// matching the teacher's ExtractContext approach.
func capToLines(source []byte, expanded, original ByteRange) ByteRange {
	startLine := lineOf(source, expanded.Start)
	endLine := lineOf(source, expanded.End)
	if endLine-startLine+1 <= maxExpandedLines {
		return expanded
	}

	origStartLine := lineOf(source, original.Start)
	origEndLine := lineOf(source, original.End)
	center := (origStartLine + origEndLine) / 2

	half := maxExpandedLines / 2
	capStart := center - half
	capEnd := capStart + maxExpandedLines - 1
	if capStart < startLine {
		capStart = startLine
		capEnd = capStart + maxExpandedLines - 1
	}
	if capEnd > endLine {
		capEnd = endLine
		capStart = capEnd - maxExpandedLines + 1
	}
	if capStart < startLine {
		capStart = startLine
	}

	return ByteRange{
		Start: byteOfLineStart(source, capStart),
		End:   byteOfLineEnd(source, capEnd, expanded.End),
	}
}

func lineOf(source []byte, byteOffset int) int {
	if byteOffset > len(source) {
		byteOffset = len(source)
	}
	return strings.Count(string(source[:byteOffset]), "\n")
}

func byteOfLineStart(source []byte, line int) int {
	offset := 0
	for l := 0; l < line; l++ {
		idx := strings.IndexByte(string(source[offset:]), '\n')
		if idx < 0 {
			return len(source)
		}
		offset += idx + 1
	}
	return offset
}

func byteOfLineEnd(source []byte, line int, fallback int) int {
	start := byteOfLineStart(source, line)
	rest := string(source[start:])
	end := len(source)
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		end = start + idx
	}
	if end < fallback {
		return end
	}
	return fallback
}
