// Package chunk implements the Chunker (SPEC_FULL.md §4.1): splitting raw
// file bytes into overlapping chunks, preferring splits at the coarsest
// separator pattern that fits within the target size, and falling back to
// a hard byte split when no language is registered or no separator fits.
package chunk

import "regexp"

// Config carries the chunker's size parameters. Defaults match
// SPEC_FULL.md §4.1 and §6: T=1000, O=300, Min=T/2=500.
type Config struct {
	Target  int
	Overlap int
	Min     int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{Target: 1000, Overlap: 300, Min: 500}
}

// Chunk is a byte-range slice of the input. Text is not stored by the
// engine beyond this point (SPEC_FULL.md §3 — chunk text is re-read from
// disk at presentation time); Chunker returns a text view only so callers
// one layer up (metadata/symbol extraction, tokenization, embedding) can
// operate on it without re-reading the file themselves.
type Chunk struct {
	Start int
	End   int
	Text  []byte
}

// Split divides content into chunks according to cfg, honoring the
// separator hierarchy (coarsest first) when languageID has one, or a
// plain-text fallback (paragraph, then line, then hard split) otherwise.
//
// Split operates on raw bytes, not runes: non-UTF-8 content never produces
// a decoding error, matching SPEC_FULL.md §4.1's failure-mode contract.
func Split(content []byte, separators []*regexp.Regexp, cfg Config) []Chunk {
	if len(content) == 0 {
		return nil
	}
	if cfg.Target <= 0 {
		cfg = DefaultConfig()
	}
	if len(separators) == 0 {
		separators = plainTextSeparators()
	}

	boundaries := boundariesByLevel(content, separators)

	var chunks []Chunk
	start := 0
	for start < len(content) {
		end := nextEnd(content, start, boundaries, cfg)
		chunks = append(chunks, Chunk{Start: start, End: end, Text: content[start:end]})

		if end >= len(content) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// nextEnd picks the end offset for a chunk starting at start. It prefers
// the coarsest separator boundary inside (start+cfg.Min, start+cfg.Target],
// falling back to finer levels, and finally a hard cut at start+cfg.Target
// when no boundary qualifies.
func nextEnd(content []byte, start int, boundaries [][]int, cfg Config) int {
	remaining := len(content) - start
	if remaining <= cfg.Target {
		return len(content)
	}

	windowMin := start + cfg.Min
	windowMax := start + cfg.Target

	for _, levelOffsets := range boundaries {
		best := -1
		for _, off := range levelOffsets {
			if off <= start || off > windowMax {
				continue
			}
			if off < windowMin {
				// Too close to the start to form a well-sized chunk; keep
				// looking for a later boundary at this level.
				if off > best {
					best = off
				}
				continue
			}
			// Prefer the boundary closest to the target size.
			if off > best {
				best = off
			}
		}
		if best > start {
			return best
		}
	}

	return windowMax
}

// boundariesByLevel finds every separator match's start offset for each
// level, coarsest first. Offsets are kept in match order; no
// deduplication is done.
func boundariesByLevel(content []byte, separators []*regexp.Regexp) [][]int {
	levels := make([][]int, len(separators))
	for i, sep := range separators {
		matches := sep.FindAllIndex(content, -1)
		offsets := make([]int, 0, len(matches))
		for _, m := range matches {
			offsets = append(offsets, m[0])
		}
		levels[i] = offsets
	}
	return levels
}

func plainTextSeparators() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`\n\n`),
		regexp.MustCompile(`\n`),
	}
}
