package store

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Filters narrows a search to a scalar subset of chunks. A zero value
// applies no filtering. LanguageIDs and SymbolTypes are OR'd (any match
// qualifies), per SPEC_FULL.md §4.7's filter semantics. SymbolNameGlob
// supports '*' and '?' wildcards (SPEC_FULL.md §6); unsupported glob
// metacharacters are rejected by the Search Pipeline before reaching this
// package (cerr.ErrMalformedQuery).
type Filters struct {
	LanguageIDs    []string
	SymbolTypes    []string
	SymbolNameGlob string
}

// apply adds this Filters' conditions to a squirrel SelectBuilder already
// scoped to the chunks table (or a query joining against it).
func (f Filters) apply(q sq.SelectBuilder) sq.SelectBuilder {
	if len(f.LanguageIDs) > 0 {
		q = q.Where(sq.Eq{"c.language_id": f.LanguageIDs})
	}
	if len(f.SymbolTypes) > 0 {
		q = q.Where(sq.Eq{"c.symbol_type": f.SymbolTypes})
	}
	if f.SymbolNameGlob != "" {
		q = q.Where("c.symbol_name LIKE ? ESCAPE '\\'", globToLike(f.SymbolNameGlob))
	}
	return q
}

// globToLike converts a '*'/'?' glob into a SQL LIKE pattern, escaping any
// literal '%'/'_'/'\' already present so they aren't mistaken for LIKE
// metacharacters (SPEC_FULL.md §6's glob-to-LIKE requirement).
func globToLike(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
