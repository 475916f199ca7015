package symbol

import (
	"regexp"
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// maxSignatureBytes truncates long signatures (e.g. multi-line generics)
// before they reach the store, per SPEC_FULL.md §4.2.
const maxSignatureBytes = 200

// Symbol is one declarative-query match, after qualification and
// outermost-only deduplication.
type Symbol struct {
	Type      string // function, method, class, interface, struct, enum, type, module, trait, constructor
	Name      string // qualified for methods: "Type.method"
	Signature string
	StartByte int
	EndByte   int
}

// ParseHealth reports how cleanly source parsed under a grammar.
// Tree-sitter is error-recovering, so a syntax tree comes back even for
// badly broken input; ErrorCount and RootFailed are how Extract tells its
// caller the tree still carries damage instead of silently reporting "ok"
// (SPEC_FULL.md's Parse Result status ∈ {ok, partial, error, no_grammar}).
type ParseHealth struct {
	// ErrorCount is the number of ERROR/MISSING nodes found in the tree.
	ErrorCount int
	// RootFailed is true when the root node itself is an ERROR node,
	// meaning the grammar didn't recognize the file as this language at
	// all, as opposed to a handful of localized syntax errors.
	RootFailed bool
}

// Extract runs languageID's compiled query against source and returns the
// outermost definitions it finds, plus the resulting tree's ParseHealth.
// Extract assumes languageID has a compiled grammar (callers check
// Registry.HasGrammar first and record a "no_grammar" parse result instead
// of calling Extract when it doesn't).
func (r *Registry) Extract(languageID string, source []byte) ([]Symbol, ParseHealth, error) {
	query := r.queries[languageID]
	spec := r.specs[languageID]

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(spec.language); err != nil {
		return nil, ParseHealth{}, err
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, ParseHealth{}, nil
	}
	defer tree.Close()
	root := tree.RootNode()

	var health ParseHealth
	if root.HasError() {
		health.ErrorCount = countErrorNodes(root)
		health.RootFailed = root.IsError()
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	matches := cursor.Matches(query, root, source)

	names := query.CaptureNames()
	var candidates []Symbol

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		var defNode *sitter.Node
		var defType string
		var nameNode *sitter.Node

		for _, cap := range match.Captures {
			captureName := names[cap.Index]
			n := cap.Node
			if !strings.Contains(captureName, ".") {
				defNode = &n
				defType = captureName
				continue
			}
			if strings.HasSuffix(captureName, ".name") {
				nameNode = &n
			}
		}

		if defNode == nil {
			continue
		}

		var name string
		if nameNode != nil {
			name = string(source[nameNode.StartByte():nameNode.EndByte()])
		}
		if defType == "method" {
			name = qualifyMethod(defNode, source, spec, name)
		}

		sig := signature(defNode, source)

		candidates = append(candidates, Symbol{
			Type:      defType,
			Name:      name,
			Signature: sig,
			StartByte: int(defNode.StartByte()),
			EndByte:   int(defNode.EndByte()),
		})
	}

	return outermostOnly(candidates), health, nil
}

// countErrorNodes walks node's subtree counting ERROR/MISSING nodes,
// grounded on the Aman-CERP-amanmcp pack sibling's tsNode.HasError()
// per-node convention, here walked recursively since this binding reports
// HasError only on the queried node, not a running count.
func countErrorNodes(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	count := 0
	if node.IsError() || node.IsMissing() {
		count++
	}
	children := node.ChildCount()
	for i := uint(0); i < children; i++ {
		count += countErrorNodes(node.Child(i))
	}
	return count
}

// qualifyMethod prefixes a method's name with its enclosing type, so
// "Fetch" on project-cortex's Service becomes "Service.Fetch". Go methods
// carry their receiver as a query capture; other languages resolve the
// enclosing type by walking up the tree to the nearest class/impl/trait
// ancestor (grounded on the teacher's findChildByType manual-walk style,
// internal/indexer/parsers/treesitter.go).
func qualifyMethod(defNode *sitter.Node, source []byte, spec languageSpec, methodName string) string {
	if receiver := goReceiverType(defNode, source); receiver != "" {
		return receiver + "." + methodName
	}
	if enclosing := enclosingTypeName(defNode, source, spec.enclosingKind); enclosing != "" {
		return enclosing + "." + methodName
	}
	return methodName
}

var receiverTypeName = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// goReceiverType extracts "Service" from a Go method's receiver node text
// like "(s *Service)" or "(s Service)". Returns "" if defNode isn't a
// Go method_declaration (no "receiver" field).
func goReceiverType(defNode *sitter.Node, source []byte) string {
	receiver := defNode.ChildByFieldName("receiver")
	if receiver == nil {
		return ""
	}
	text := string(source[receiver.StartByte():receiver.EndByte()])
	text = strings.TrimPrefix(strings.TrimSuffix(strings.TrimSpace(text), ")"), "(")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	typeField := fields[len(fields)-1]
	typeField = strings.TrimPrefix(typeField, "*")
	match := receiverTypeName.FindString(typeField)
	return match
}

func enclosingTypeName(node *sitter.Node, source []byte, enclosingKind map[string]bool) string {
	if len(enclosingKind) == 0 {
		return ""
	}
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if !enclosingKind[parent.Kind()] {
			continue
		}
		nameNode := parent.ChildByFieldName("name")
		if nameNode == nil {
			return ""
		}
		return string(source[nameNode.StartByte():nameNode.EndByte()])
	}
	return ""
}

// signature returns defNode's source text up to its first "{" (or the
// whole node if none), truncated to maxSignatureBytes.
func signature(defNode *sitter.Node, source []byte) string {
	text := source[defNode.StartByte():defNode.EndByte()]
	if brace := indexByte(text, '{'); brace >= 0 {
		text = text[:brace]
	}
	text = []byte(strings.TrimSpace(string(text)))
	if len(text) > maxSignatureBytes {
		text = text[:maxSignatureBytes]
	}
	return string(text)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// outermostOnly sorts candidates by start byte, widest-first on ties, and
// drops any candidate fully nested inside one already kept — the "first/
// outermost definition only" rule (SPEC_FULL.md §4.2): a closure assigned
// inside a function is not indexed as its own symbol. Definitions nested
// directly in a kept class, interface, trait, module or enum (its methods)
// are kept.
func outermostOnly(candidates []Symbol) []Symbol {
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].StartByte != candidates[j].StartByte {
			return candidates[i].StartByte < candidates[j].StartByte
		}
		return candidates[i].EndByte > candidates[j].EndByte
	})

	memberContainers := map[string]bool{"class": true, "interface": true, "trait": true, "module": true, "enum": true}

	var kept []Symbol
	lastEnd := -1
	lastType := ""
	for _, c := range candidates {
		if c.StartByte < lastEnd && !memberContainers[lastType] {
			continue // nested inside the previously kept definition
		}
		kept = append(kept, c)
		lastEnd = c.EndByte
		lastType = c.Type
	}
	return kept
}
