// Package lang implements the Language Registry (SPEC_FULL.md §4.2): an
// explicit, compile-time list of language handlers rather than the
// dynamic-import autodiscovery a scripting-language teacher would use
// (SPEC_FULL.md's "Registry autodiscovery" re-architecture note).
package lang

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Metadata is returned by a Handler's extractor for a single chunk. Fields
// are always empty strings, never nil, when unknown.
type Metadata struct {
	BlockType  string
	Hierarchy  string
	LanguageID string
}

// Extractor derives chunk metadata from the chunk's raw bytes. It is
// regex-only; no external parser is required at this layer (a syntax
// grammar, when one exists, is consulted separately by the Symbol
// Extractor and Context Expander).
type Extractor func(chunkBytes []byte, languageID string) Metadata

// Handler describes one registered language.
type Handler struct {
	// ID is the canonical, normalized language identifier (e.g. "python").
	ID string
	// Aliases resolve to ID (e.g. "terraform" and "tf" both resolve to "hcl").
	Aliases []string
	// Extensions are matched case-insensitively, including the leading dot.
	Extensions []string
	// Filenames are exact base-name matches (e.g. "Dockerfile", "Makefile").
	Filenames []string
	// Separators are compiled regexes ordered coarsest to finest; the
	// Chunker consumes them in this order.
	Separators []*regexp.Regexp
	// HasGrammar marks languages with a registered tree-sitter grammar
	// (consulted by the Symbol Extractor and Context Expander).
	HasGrammar bool
	// Extract returns chunk-level metadata. Optional; a nil Extract
	// yields zero-value Metadata for every chunk.
	Extract Extractor
}

// GrammarHandler selects a handler by path glob plus a content-marker
// predicate, for schemas that ride on top of a generic language (e.g. a
// CI-workflow schema on top of YAML). Matching grammar handlers take
// priority over plain extension/filename handlers.
type GrammarHandler struct {
	// ID is the language_id this grammar handler resolves to (may differ
	// from the underlying Handler.ID, e.g. "github-actions-workflow").
	ID string
	// PathGlob matches the file's path (relative, slash-separated).
	PathGlob glob.Glob
	// ContentProbe returns true when the file's content confirms the
	// grammar (e.g. the presence of a `jobs:` top-level key).
	ContentProbe func(content []byte) bool
	// Underlying is the Handler whose separators/extractor apply once this
	// grammar handler has matched (the YAML handler, for instance).
	Underlying *Handler
	// Extract, when set, overrides Underlying.Extract for this grammar.
	Extract Extractor
}

// Registry resolves a file to a language_id and a Handler.
type Registry struct {
	handlers   map[string]*Handler
	aliases    map[string]string
	byExt      map[string]*Handler
	byFilename map[string]*Handler
	grammars   []*GrammarHandler
}

// NewRegistry validates and compiles handlers and grammar handlers.
// Malformed separator regexes are rejected here (fail-fast at startup,
// per SPEC_FULL.md §4.1's Chunker failure modes).
func NewRegistry(handlers []*Handler, grammars []*GrammarHandler) (*Registry, error) {
	r := &Registry{
		handlers:   make(map[string]*Handler),
		aliases:    make(map[string]string),
		byExt:      make(map[string]*Handler),
		byFilename: make(map[string]*Handler),
	}

	for _, h := range handlers {
		if h.ID == "" {
			return nil, fmt.Errorf("lang: handler registered with empty ID")
		}
		if _, exists := r.handlers[h.ID]; exists {
			return nil, fmt.Errorf("lang: duplicate handler ID %q", h.ID)
		}
		for _, sep := range h.Separators {
			if sep == nil {
				return nil, fmt.Errorf("lang: handler %q has a nil separator", h.ID)
			}
		}
		r.handlers[h.ID] = h
		r.aliases[h.ID] = h.ID
		for _, alias := range h.Aliases {
			r.aliases[strings.ToLower(alias)] = h.ID
		}
		for _, ext := range h.Extensions {
			r.byExt[strings.ToLower(ext)] = h
		}
		for _, fn := range h.Filenames {
			r.byFilename[fn] = h
		}
	}

	r.grammars = append(r.grammars, grammars...)
	for _, g := range grammars {
		if g.PathGlob == nil {
			return nil, fmt.Errorf("lang: grammar handler %q missing PathGlob", g.ID)
		}
	}

	return r, nil
}

// LanguageFor resolves path + an optional content probe to a language_id.
// Priority: (1) grammar handlers matching path glob and content marker,
// (2) handlers matching filename, (3) handlers matching extension,
// (4) empty string (plain-text fallback).
func (r *Registry) LanguageFor(path string, content []byte) string {
	slashPath := filepath.ToSlash(path)
	base := filepath.Base(slashPath)

	for _, g := range r.grammars {
		if !g.PathGlob.Match(slashPath) {
			continue
		}
		if g.ContentProbe != nil && !g.ContentProbe(content) {
			continue
		}
		return g.ID
	}

	if h, ok := r.byFilename[base]; ok {
		return h.ID
	}

	ext := strings.ToLower(filepath.Ext(slashPath))
	if h, ok := r.byExt[ext]; ok {
		return h.ID
	}

	return ""
}

// HandlerFor resolves a language_id (or alias) to its Handler.
func (r *Registry) HandlerFor(languageID string) (*Handler, bool) {
	canonical, ok := r.resolveAlias(languageID)
	if !ok {
		return nil, false
	}
	h, ok := r.handlers[canonical]
	return h, ok
}

// GrammarHandlerFor returns the grammar handler registered under id, if any.
// Used when a grammar ID's metadata/extraction differs from its Underlying
// handler (e.g. the workflow schema wants its own Extract).
func (r *Registry) GrammarHandlerFor(id string) (*GrammarHandler, bool) {
	for _, g := range r.grammars {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// resolveAlias resolves a raw language identifier or alias to the
// canonical handler ID that owns it. Grammar-handler IDs resolve to
// themselves when there's no alias entry (they are always canonical).
func (r *Registry) resolveAlias(languageID string) (string, bool) {
	if languageID == "" {
		return "", false
	}
	if canonical, ok := r.aliases[strings.ToLower(languageID)]; ok {
		return canonical, true
	}
	for _, g := range r.grammars {
		if g.ID == languageID {
			return languageID, true
		}
	}
	return "", false
}

// Extractor returns the metadata extractor to use for languageID,
// preferring a grammar-specific override when one is registered.
func (r *Registry) Extractor(languageID string) Extractor {
	if g, ok := r.GrammarHandlerFor(languageID); ok {
		if g.Extract != nil {
			return g.Extract
		}
		if g.Underlying != nil {
			return g.Underlying.Extract
		}
	}
	if h, ok := r.HandlerFor(languageID); ok {
		return h.Extract
	}
	return nil
}

// Separators returns the separator hierarchy for languageID, preferring a
// grammar handler's Underlying separators when languageID names a grammar.
func (r *Registry) Separators(languageID string) []*regexp.Regexp {
	if g, ok := r.GrammarHandlerFor(languageID); ok && g.Underlying != nil {
		return g.Underlying.Separators
	}
	if h, ok := r.HandlerFor(languageID); ok {
		return h.Separators
	}
	return nil
}

// HasGrammar reports whether languageID has a registered syntax grammar,
// consulted by the Symbol Extractor and Context Expander.
func (r *Registry) HasGrammar(languageID string) bool {
	if g, ok := r.GrammarHandlerFor(languageID); ok && g.Underlying != nil {
		return g.Underlying.HasGrammar
	}
	if h, ok := r.HandlerFor(languageID); ok {
		return h.HasGrammar
	}
	return false
}

// CustomLanguages exports the registered handlers to the Chunker on
// startup, mirroring the contract in SPEC_FULL.md §4.2.
func (r *Registry) CustomLanguages() []*Handler {
	out := make([]*Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	return out
}
