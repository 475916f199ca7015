package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExact_MissThenHitAfterSet(t *testing.T) {
	c := New()
	ctx := context.Background()

	_, ok := c.GetExact("fp-1")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "fp-1", "fp-1-no-query", []float32{1, 0, 0}, "proj", "payload-1"))

	entry, ok := c.GetExact("fp-1")
	require.True(t, ok)
	assert.Equal(t, "payload-1", entry.Payload)
	assert.Equal(t, "proj", entry.IndexName)
}

func TestGetSemantic_HitsOnCloseEmbeddingWithinSameBucket(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp-a", "bucket-1", []float32{1, 0, 0}, "proj", "result-a"))

	entry, ok := c.GetSemantic(ctx, "bucket-1", []float32{0.999, 0.01, 0})
	require.True(t, ok)
	assert.Equal(t, "result-a", entry.Payload)
}

func TestGetSemantic_MissesOnDissimilarEmbedding(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp-a", "bucket-1", []float32{1, 0, 0}, "proj", "result-a"))

	_, ok := c.GetSemantic(ctx, "bucket-1", []float32{0, 1, 0})
	assert.False(t, ok)
}

func TestGetSemantic_MissesOnUnknownBucket(t *testing.T) {
	c := New()
	_, ok := c.GetSemantic(context.Background(), "never-seen", []float32{1, 0, 0})
	assert.False(t, ok)
}

func TestInvalidate_RemovesOnlyMatchingIndex(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp-proj", "bucket-proj", []float32{1, 0, 0}, "proj", "proj-result"))
	require.NoError(t, c.Set(ctx, "fp-other", "bucket-other", []float32{0, 1, 0}, "other", "other-result"))

	c.Invalidate("proj")

	_, ok := c.GetExact("fp-proj")
	assert.False(t, ok)
	_, ok = c.GetExact("fp-other")
	assert.True(t, ok)

	_, ok = c.GetSemantic(ctx, "bucket-proj", []float32{1, 0, 0})
	assert.False(t, ok)
	_, ok = c.GetSemantic(ctx, "bucket-other", []float32{0, 1, 0})
	assert.True(t, ok)
}

func TestGetExact_ExpiresAfterTTL(t *testing.T) {
	c := New()
	c.ttl = time.Millisecond

	require.NoError(t, c.Set(context.Background(), "fp-1", "bucket-1", []float32{1, 0, 0}, "proj", "payload"))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.GetExact("fp-1")
	assert.False(t, ok)
}

func TestL1Key_DeterministicAndDistinct(t *testing.T) {
	assert.Equal(t, L1Key("same"), L1Key("same"))
	assert.NotEqual(t, L1Key("a"), L1Key("b"))
}
