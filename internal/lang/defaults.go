package lang

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// mustCompileAll compiles each pattern with Go's RE2 dialect. RE2 already
// rejects lookaround and backreferences, so a compile failure here is
// exactly the "malformed regex in a handler" fail-fast case in
// SPEC_FULL.md §4.1.
func mustCompileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Default returns the built-in handler and grammar-handler set. Adding a
// language means appending to these two slices and re-running
// NewRegistry — no reflection or dynamic loading involved.
func Default() ([]*Handler, []*GrammarHandler) {
	goHandler := &Handler{
		ID:         "go",
		Extensions: []string{".go"},
		HasGrammar: true,
		Separators: mustCompileAll(
			`(?m)^func\s`,
			`(?m)^type\s`,
			`(?m)^(const|var)\s`,
			`\n\n`,
			`\n`,
		),
		Extract: goExtractor,
	}

	pythonHandler := &Handler{
		ID:         "python",
		Extensions: []string{".py"},
		HasGrammar: true,
		Separators: mustCompileAll(
			`(?m)^(class|def)\s`,
			`(?m)^\s*(class|def)\s`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("python", `^\s*class\s+(\w+)`, `^\s*def\s+(\w+)`),
	}

	tsHandler := &Handler{
		ID:         "typescript",
		Aliases:    []string{"ts", "tsx"},
		Extensions: []string{".ts", ".tsx"},
		HasGrammar: true,
		Separators: mustCompileAll(
			`(?m)^export\s+(default\s+)?(class|function|interface)\s`,
			`(?m)^(class|function|interface)\s`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("typescript",
			`^\s*(export\s+)?(default\s+)?class\s+(\w+)`,
			`^\s*(export\s+)?(default\s+)?function\s+(\w+)`,
			`^\s*(export\s+)?interface\s+(\w+)`,
		),
	}

	jsHandler := &Handler{
		ID:         "javascript",
		Aliases:    []string{"js", "jsx"},
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		HasGrammar: true,
		Separators: mustCompileAll(
			`(?m)^(export\s+(default\s+)?)?(class|function)\s`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("javascript",
			`^\s*(export\s+)?(default\s+)?class\s+(\w+)`,
			`^\s*(export\s+)?(default\s+)?function\s+(\w+)`,
		),
	}

	rustHandler := &Handler{
		ID:         "rust",
		Extensions: []string{".rs"},
		HasGrammar: true,
		Separators: mustCompileAll(
			`(?m)^(pub\s+)?(fn|struct|enum|trait|impl)\s`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("rust",
			`^\s*(pub\s+)?struct\s+(\w+)`,
			`^\s*(pub\s+)?trait\s+(\w+)`,
			`^\s*(pub\s+)?fn\s+(\w+)`,
		),
	}

	javaHandler := &Handler{
		ID:         "java",
		Extensions: []string{".java"},
		HasGrammar: true,
		Separators: mustCompileAll(
			`(?m)^\s*(public|private|protected)?\s*(class|interface)\s`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("java",
			`^\s*(public\s+)?(abstract\s+)?class\s+(\w+)`,
			`^\s*(public\s+)?interface\s+(\w+)`,
		),
	}

	cHandler := &Handler{
		ID:         "c",
		Aliases:    []string{"cpp", "c++", "cc"},
		Extensions: []string{".c", ".h", ".cpp", ".cc", ".hpp", ".cxx"},
		HasGrammar: true,
		Separators: mustCompileAll(
			`(?m)^\w[\w\s\*]*\([^;]*\)\s*\{`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("c", `^\s*struct\s+(\w+)`),
	}

	phpHandler := &Handler{
		ID:         "php",
		Extensions: []string{".php"},
		HasGrammar: true,
		Separators: mustCompileAll(
			`(?m)^\s*(abstract\s+)?(class|interface)\s`,
			`(?m)^\s*function\s`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("php",
			`^\s*(abstract\s+)?class\s+(\w+)`,
			`^\s*interface\s+(\w+)`,
			`^\s*function\s+(\w+)`,
		),
	}

	rubyHandler := &Handler{
		ID:         "ruby",
		Extensions: []string{".rb"},
		HasGrammar: true,
		Separators: mustCompileAll(
			`(?m)^\s*(class|module)\s`,
			`(?m)^\s*def\s`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("ruby",
			`^\s*class\s+(\w+)`,
			`^\s*module\s+(\w+)`,
			`^\s*def\s+(\w+)`,
		),
	}

	hclHandler := &Handler{
		ID:         "hcl",
		Aliases:    []string{"terraform", "tf"},
		Extensions: []string{".tf", ".tf.json", ".hcl"},
		HasGrammar: false,
		Separators: mustCompileAll(
			`(?m)^(resource|data|module|variable|output|provider)\s`,
			`\n\n`,
			`\n`,
		),
		Extract: hclExtractor,
	}

	bashHandler := &Handler{
		ID:         "bash",
		Aliases:    []string{"sh", "shell"},
		Extensions: []string{".sh", ".bash"},
		HasGrammar: false,
		Separators: mustCompileAll(
			`(?m)^\w+\s*\(\)\s*\{`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("bash", `^\s*(\w+)\s*\(\)\s*\{`),
	}

	dockerfileHandler := &Handler{
		ID:        "dockerfile",
		Filenames: []string{"Dockerfile"},
		Separators: mustCompileAll(
			`(?m)^(FROM|RUN|COPY|ADD|ENTRYPOINT|CMD)\s`,
			`\n`,
		),
		Extract: dockerfileExtractor,
	}

	yamlHandler := &Handler{
		ID:         "yaml",
		Aliases:    []string{"yml"},
		Extensions: []string{".yaml", ".yml"},
		Separators: mustCompileAll(
			`(?m)^\w[\w.-]*:\s*$`,
			`\n\n`,
			`\n`,
		),
		Extract: genericKeywordExtractor("yaml", `^(\w[\w.-]*):`),
	}

	markdownHandler := &Handler{
		ID:         "markdown",
		Aliases:    []string{"md"},
		Extensions: []string{".md", ".markdown"},
		Separators: mustCompileAll(
			`(?m)^#{1,2}\s`,
			`\n\n`,
			`\n`,
		),
	}

	handlers := []*Handler{
		goHandler, pythonHandler, tsHandler, jsHandler, rustHandler, javaHandler,
		cHandler, phpHandler, rubyHandler, hclHandler, bashHandler,
		dockerfileHandler, yamlHandler, markdownHandler,
	}

	// Grammar handler: a GitHub Actions workflow is YAML on disk but has
	// its own schema. Matching requires both the path glob and a content
	// marker, per SPEC_FULL.md §4.2's grammar-handler priority rule.
	workflowGlob := glob.MustCompile(".github/workflows/*.{yml,yaml}", '/')
	workflowGrammar := &GrammarHandler{
		ID:       "github-actions-workflow",
		PathGlob: workflowGlob,
		ContentProbe: func(content []byte) bool {
			return bytes.Contains(content, []byte("\njobs:")) || bytes.HasPrefix(content, []byte("jobs:")) ||
				bytes.Contains(content, []byte("\non:")) || bytes.HasPrefix(content, []byte("on:"))
		},
		Underlying: yamlHandler,
		Extract:    genericKeywordExtractor("github-actions-workflow", `^(\w[\w.-]*):`),
	}

	return handlers, []*GrammarHandler{workflowGrammar}
}

// goExtractor recognizes Go's func/type/const/var top-level declarations.
func goExtractor(chunkBytes []byte, languageID string) Metadata {
	text := string(chunkBytes)
	if m := reGoFunc.FindStringSubmatch(text); m != nil {
		return Metadata{BlockType: "function", Hierarchy: m[1], LanguageID: languageID}
	}
	if m := reGoMethod.FindStringSubmatch(text); m != nil {
		return Metadata{BlockType: "method", Hierarchy: m[1] + "." + m[2], LanguageID: languageID}
	}
	if m := reGoType.FindStringSubmatch(text); m != nil {
		return Metadata{BlockType: "type", Hierarchy: m[1], LanguageID: languageID}
	}
	return Metadata{LanguageID: languageID}
}

var (
	reGoFunc   = regexp.MustCompile(`(?m)^func\s+(\w+)\s*\(`)
	reGoMethod = regexp.MustCompile(`(?m)^func\s+\(\w+\s+\*?(\w+)\)\s+(\w+)\s*\(`)
	reGoType   = regexp.MustCompile(`(?m)^type\s+(\w+)\s`)
)

// genericKeywordExtractor builds an Extractor that returns the first
// matching pattern's last capture group as the hierarchy and a block type
// inferred from the pattern's keyword. The patterns are tried in order so the
// caller controls precedence (class before function, etc.).
func genericKeywordExtractor(languageID string, patterns ...string) Extractor {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return func(chunkBytes []byte, lid string) Metadata {
		text := string(chunkBytes)
		for _, re := range compiled {
			if m := re.FindStringSubmatch(text); m != nil {
				name := m[len(m)-1]
				return Metadata{BlockType: blockTypeFor(re.String()), Hierarchy: name, LanguageID: lid}
			}
		}
		return Metadata{LanguageID: lid}
	}
}

func blockTypeFor(pattern string) string {
	switch {
	case strings.Contains(pattern, "class"):
		return "class"
	case strings.Contains(pattern, "interface"):
		return "interface"
	case strings.Contains(pattern, "trait"):
		return "interface"
	case strings.Contains(pattern, "struct"):
		return "class"
	case strings.Contains(pattern, "module"):
		return "class"
	case strings.Contains(pattern, "def") || strings.Contains(pattern, "function") || strings.Contains(pattern, "fn"):
		return "function"
	default:
		return ""
	}
}

var reHCLBlock = regexp.MustCompile(`(?m)^(resource|data|module|variable|output|provider)\s+"?([\w_]+)"?\s*"?([\w_.]*)"?`)

// hclExtractor builds the dotted hierarchy HCL convention used in
// SPEC_FULL.md's example: "resource.aws_s3_bucket.data".
func hclExtractor(chunkBytes []byte, languageID string) Metadata {
	m := reHCLBlock.FindStringSubmatch(string(chunkBytes))
	if m == nil {
		return Metadata{LanguageID: languageID}
	}
	parts := []string{m[1], m[2]}
	if m[3] != "" {
		parts = append(parts, m[3])
	}
	return Metadata{BlockType: m[1], Hierarchy: strings.Join(parts, "."), LanguageID: languageID}
}

var reDockerfileInstr = regexp.MustCompile(`(?m)^(FROM|RUN|COPY|ADD|ENTRYPOINT|CMD|EXPOSE|ENV|WORKDIR)\s+(.*)$`)

func dockerfileExtractor(chunkBytes []byte, languageID string) Metadata {
	m := reDockerfileInstr.FindStringSubmatch(string(chunkBytes))
	if m == nil {
		return Metadata{LanguageID: languageID}
	}
	return Metadata{BlockType: strings.ToLower(m[1]), Hierarchy: strings.TrimSpace(m[2]), LanguageID: languageID}
}
