// Package lexical implements the Lexical Tokenizer (SPEC_FULL.md §4.4):
// splitting identifiers into constituent words while preserving the
// original identifier, and appending file-path tokens. The store's
// tsvector configuration (SPEC_FULL.md's Store Adapter, a stemless
// "unicode61" FTS5 tokenizer) handles lowercasing, so this package never
// lowercases.
package lexical

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Tokenize emits a space-separated token string for text (the content of
// one chunk) plus tokens derived from filename's path components. The
// output is fed to the store as content_tsv_input.
func Tokenize(text, filename string) string {
	var tokens []string

	for _, ident := range identifierPattern.FindAllString(text, -1) {
		tokens = append(tokens, ident)
		tokens = append(tokens, splitIdentifier(ident)...)
	}

	tokens = append(tokens, pathTokens(filename)...)

	return strings.Join(tokens, " ")
}

// splitIdentifier splits one identifier at camelCase/PascalCase
// boundaries and underscores/hyphens, returning the constituent words.
// The identifier itself is not included (callers append it separately so
// it is always searchable verbatim).
func splitIdentifier(ident string) []string {
	// Normalize underscore/hyphen word breaks to spaces first.
	normalized := strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, ident)

	var words []string
	var current []rune
	runes := []rune(normalized)

	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = nil
		}
	}

	for i, r := range runes {
		switch {
		case r == ' ':
			flush()
		case unicode.IsUpper(r) && i > 0 && runes[i-1] != ' ' && !unicode.IsUpper(runes[i-1]):
			// lower->Upper boundary: "getUser" -> "get" | "User"
			flush()
			current = append(current, r)
		case unicode.IsUpper(r) && i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1]):
			// Acronym->word boundary: "HTTPServer" -> "HTTP" | "Server"
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()

	out := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// pathTokens splits a file path into its components (directories and the
// base filename, with its extension split off as its own token), each
// base followed by its splitIdentifier words, e.g.
// ".github/workflows/release.yaml" ->
// ["github","github","workflows","workflows","release","release","yaml"].
func pathTokens(path string) []string {
	if path == "" {
		return nil
	}
	slashPath := filepath.ToSlash(path)
	parts := strings.Split(slashPath, "/")

	var tokens []string
	for _, part := range parts {
		part = strings.TrimPrefix(part, ".")
		if part == "" {
			continue
		}
		ext := filepath.Ext(part)
		base := strings.TrimSuffix(part, ext)
		if base != "" {
			tokens = append(tokens, base)
			tokens = append(tokens, splitIdentifier(base)...)
		}
		if ext != "" {
			tokens = append(tokens, strings.TrimPrefix(ext, "."))
		}
	}
	return tokens
}
