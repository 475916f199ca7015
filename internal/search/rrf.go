package search

import (
	"math"
	"sort"
	"strings"

	"github.com/VioletCranberry/cocosearch/internal/store"
)

// fusedHit tracks both arms' contribution to one chunk, so later stages
// can report vector_score/keyword_score and match_type without re-querying.
type fusedHit struct {
	hit             store.Hit
	vectorRank      int // 1-based; 0 means absent from the vector arm
	keywordRank     int
	vectorScore     float64
	keywordScore    float64
	hasVectorScore  bool
	hasKeywordScore bool
	score           float64
}

func (f fusedHit) matchType() MatchType {
	switch {
	case f.vectorRank > 0 && f.keywordRank > 0:
		return MatchBoth
	case f.keywordRank > 0:
		return MatchKeyword
	default:
		return MatchSemantic
	}
}

// fuse combines vectorHits and keywordHits by Reciprocal Rank Fusion
// (SPEC_FULL.md §4.7 stage 7): score = sum(1/(k+rank)) over every list a
// chunk appears in. Ties are broken by keyword-arm rank (better, i.e.
// lower, rank wins; absence loses to presence), matching SPEC_FULL.md
// §8's worked A=[a,b,c]/B=[b,a] example.
func fuse(vectorHits, keywordHits []store.Hit, k int) []fusedHit {
	byID := make(map[string]*fusedHit, len(vectorHits)+len(keywordHits))
	var order []string

	for i, h := range vectorHits {
		byID[h.ChunkID] = &fusedHit{hit: h, vectorRank: i + 1, vectorScore: h.Score, hasVectorScore: true}
		order = append(order, h.ChunkID)
	}
	for i, h := range keywordHits {
		if f, ok := byID[h.ChunkID]; ok {
			f.keywordRank = i + 1
			f.keywordScore = h.Score
			f.hasKeywordScore = true
			continue
		}
		byID[h.ChunkID] = &fusedHit{hit: h, keywordRank: i + 1, keywordScore: h.Score, hasKeywordScore: true}
		order = append(order, h.ChunkID)
	}

	out := make([]fusedHit, 0, len(order))
	for _, id := range order {
		f := byID[id]
		if f.vectorRank > 0 {
			f.score += 1.0 / float64(k+f.vectorRank)
		}
		if f.keywordRank > 0 {
			f.score += 1.0 / float64(k+f.keywordRank)
		}
		out = append(out, *f)
	}

	sortFused(out)
	return out
}

func sortFused(fused []fusedHit) {
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return keywordRankOrInf(fused[i]) < keywordRankOrInf(fused[j])
	})
}

func keywordRankOrInf(f fusedHit) int {
	if f.keywordRank == 0 {
		return math.MaxInt
	}
	return f.keywordRank
}

// definitionKindBoostable are the symbol_type values eligible for the
// definition boost (SPEC_FULL.md §4.7 stage 8).
var definitionKindBoostable = map[string]bool{
	"function":  true,
	"class":     true,
	"method":    true,
	"interface": true,
}

// definitionKeywords names the language-appropriate keyword(s) a
// definition's source text must open with to qualify for the boost, one
// set per language_id. Grounded on the same per-language vocabulary the
// Symbol Extractor's query documents target (internal/symbol/registry.go).
var definitionKeywords = map[string][]string{
	"go":         {"func", "type"},
	"python":     {"def", "class"},
	"typescript": {"function", "class", "interface", "type", "enum"},
	"javascript": {"function", "class"},
	"rust":       {"fn", "impl", "trait", "struct", "enum"},
	"java":       {"class", "interface", "enum", "public", "private", "protected"},
	"php":        {"function", "class", "interface", "trait", "enum"},
	"ruby":       {"class", "module", "def"},
}

// applyDefinitionBoost multiplies the score of every chunk whose
// symbol_type is a boostable kind and whose source text (read via
// readText) opens with a language-appropriate definition keyword, then
// re-sorts. Chunks whose source can no longer be read are left unboosted
// rather than failing the whole search (SPEC_FULL.md §7's per-result
// recovery policy applies here too, ahead of the later read that builds
// the final Result).
func applyDefinitionBoost(fused []fusedHit, readText func(store.Hit) (string, bool)) {
	for i := range fused {
		f := &fused[i]
		if !definitionKindBoostable[f.hit.SymbolType] {
			continue
		}
		text, ok := readText(f.hit)
		if !ok {
			continue
		}
		if opensWithDefinitionKeyword(text, f.hit.LanguageID) {
			f.score *= DefinitionBoostFactor
		}
	}
	sortFused(fused)
}

func opensWithDefinitionKeyword(text, languageID string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	for _, kw := range definitionKeywords[languageID] {
		if !strings.HasPrefix(trimmed, kw) {
			continue
		}
		rest := trimmed[len(kw):]
		if rest == "" || !isIdentByte(rest[0]) {
			return true
		}
	}
	return false
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
