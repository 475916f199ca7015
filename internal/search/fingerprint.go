package search

import (
	"fmt"
	"sort"
	"strings"
)

// fingerprint builds the L1 exact-match cache key: every parameter that
// changes a search's outcome, including the raw query text.
func fingerprint(indexName, query string, filters []string, symbolTypes []string, symbolGlob string, limit int, minScore float64, mode HybridMode) string {
	var b strings.Builder
	b.WriteString(indexName)
	b.WriteByte('\x1f')
	b.WriteString(query)
	b.WriteByte('\x1f')
	b.WriteString(joinSorted(filters))
	b.WriteByte('\x1f')
	b.WriteString(joinSorted(symbolTypes))
	b.WriteByte('\x1f')
	b.WriteString(symbolGlob)
	b.WriteByte('\x1f')
	fmt.Fprintf(&b, "%d\x1f%g\x1f%s", limit, minScore, mode)
	return b.String()
}

// fingerprintWithoutQuery builds the L2 bucket key: the same parameters
// minus the query text, so queries that only differ in wording land in
// the same bucket for cosine-similarity matching.
func fingerprintWithoutQuery(indexName string, filters []string, symbolTypes []string, symbolGlob string, limit int, minScore float64, mode HybridMode) string {
	var b strings.Builder
	b.WriteString(indexName)
	b.WriteByte('\x1f')
	b.WriteString(joinSorted(filters))
	b.WriteByte('\x1f')
	b.WriteString(joinSorted(symbolTypes))
	b.WriteByte('\x1f')
	b.WriteString(symbolGlob)
	b.WriteByte('\x1f')
	fmt.Fprintf(&b, "%d\x1f%g\x1f%s", limit, minScore, mode)
	return b.String()
}

func joinSorted(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
