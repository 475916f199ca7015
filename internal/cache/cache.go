// Package cache implements the Query Cache (SPEC_FULL.md §4.8): a
// two-level, in-process, single-writer cache in front of the Search
// Pipeline. L1 is an exact-match hash lookup; L2 buckets queries by every
// search parameter except the query text itself and finds a semantically
// close prior query by cosine similarity.
//
// L2's similarity search is delegated to philippgille/chromem-go, one
// in-memory collection per bucket, so cosine comparison against a
// bucket's embeddings reuses the same vector-query code path the teacher
// used for chromem-backed chunk search (internal/mcp/chromem_searcher.go)
// instead of a hand-rolled dot-product loop. The teacher's own
// internal/cache package (branch-scoped on-disk cache directories, remote
// migration, LRU eviction of whole branch databases) addresses a
// different concept entirely — this module has no branch/worktree
// notion — so none of it carries over; see DESIGN.md.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
)

// DefaultTTL is the entry expiry window (SPEC_FULL.md §4.8).
const DefaultTTL = 24 * time.Hour

// DefaultSimilarityThreshold is L2's minimum cosine similarity for a hit.
const DefaultSimilarityThreshold = 0.95

// Entry is one cached search outcome.
type Entry struct {
	IndexName string
	Payload   any
	CreatedAt time.Time
}

// Cache is the query cache singleton. Safe for concurrent use: structural
// mutations (Set, invalidation) take the mutex; Get takes it only long
// enough to copy out the candidate list, matching SPEC_FULL.md §5's
// "reads acquire only a short lock" requirement.
type Cache struct {
	mu  sync.Mutex
	ttl time.Duration
	sim float32

	db *chromem.DB
	l1 map[string]Entry   // sha256(fingerprint) hex -> entry
	l2 map[string]*bucket // fingerprint_without_query -> bucket
}

type bucket struct {
	collection *chromem.Collection
	entries    map[string]Entry // chromem document ID -> entry
	seq        int
}

// New creates an empty Cache with the documented TTL and L2 threshold.
func New() *Cache {
	return &Cache{
		ttl: DefaultTTL,
		sim: DefaultSimilarityThreshold,
		db:  chromem.NewDB(),
		l1:  make(map[string]Entry),
		l2:  make(map[string]*bucket),
	}
}

// L1Key hashes fingerprint (the full query+filter description, including
// the raw query text) for the exact-match level.
func L1Key(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return fmt.Sprintf("%x", sum)
}

// GetExact probes L1. A bypass caller should not call this at all.
func (c *Cache) GetExact(fingerprint string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := L1Key(fingerprint)
	entry, ok := c.l1[key]
	if !ok {
		return Entry{}, false
	}
	if c.expired(entry) {
		delete(c.l1, key)
		return Entry{}, false
	}
	return entry, true
}

// GetSemantic probes L2: within fingerprintWithoutQuery's bucket, finds
// the closest prior queryEmbedding by cosine similarity and returns its
// entry if similarity >= the configured threshold.
func (c *Cache) GetSemantic(ctx context.Context, fingerprintWithoutQuery string, queryEmbedding []float32) (Entry, bool) {
	c.mu.Lock()
	b, ok := c.l2[fingerprintWithoutQuery]
	c.mu.Unlock()
	if !ok {
		return Entry{}, false
	}

	results, err := b.collection.QueryEmbedding(ctx, queryEmbedding, 1, nil, nil)
	if err != nil || len(results) == 0 {
		return Entry{}, false
	}

	best := results[0]
	if best.Similarity < c.sim {
		return Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := b.entries[best.ID]
	if !ok {
		return Entry{}, false
	}
	if c.expired(entry) {
		delete(b.entries, best.ID)
		_ = b.collection.Delete(ctx, nil, nil, best.ID)
		return Entry{}, false
	}
	return entry, true
}

// Set writes payload into both cache levels. Callers that bypassed the
// cache on read must not call Set either (SPEC_FULL.md §4.8's bypass
// contract: bypass never writes).
func (c *Cache) Set(ctx context.Context, fingerprint, fingerprintWithoutQuery string, queryEmbedding []float32, indexName string, payload any) error {
	entry := Entry{IndexName: indexName, Payload: payload, CreatedAt: time.Now()}

	c.mu.Lock()
	c.l1[L1Key(fingerprint)] = entry
	b, ok := c.l2[fingerprintWithoutQuery]
	if !ok {
		collection, err := c.db.CreateCollection(L1Key(fingerprintWithoutQuery), nil, nil)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("cache: create L2 bucket: %w", err)
		}
		b = &bucket{collection: collection, entries: make(map[string]Entry)}
		c.l2[fingerprintWithoutQuery] = b
	}
	b.seq++
	docID := strconv.Itoa(b.seq)
	b.entries[docID] = entry
	c.mu.Unlock()

	return b.collection.AddDocument(ctx, chromem.Document{
		ID:        docID,
		Content:   fingerprintWithoutQuery,
		Embedding: queryEmbedding,
	})
}

// Invalidate removes every L1 and L2 entry referencing indexName. Called
// at the start of every indexing run, before any chunk write, per
// SPEC_FULL.md §5's ordering guarantee.
func (c *Cache) Invalidate(indexName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.l1 {
		if entry.IndexName == indexName {
			delete(c.l1, key)
		}
	}
	for bucketKey, b := range c.l2 {
		for docID, entry := range b.entries {
			if entry.IndexName == indexName {
				delete(b.entries, docID)
				_ = b.collection.Delete(context.Background(), nil, nil, docID)
			}
		}
		if len(b.entries) == 0 {
			delete(c.l2, bucketKey)
		}
	}
}

func (c *Cache) expired(entry Entry) bool {
	return time.Since(entry.CreatedAt) > c.ttl
}
