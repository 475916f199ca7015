package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteProvider_EmbedReturnsVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{Embeddings: make([][]float32, len(req.Texts))}
		for i := range req.Texts {
			resp.Embeddings[i] = []float32{float32(i), 0.5}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewRemoteProvider(Config{Endpoint: srv.URL, Dimensions: 2})
	out, err := p.Embed(context.Background(), []string{"a", "b"}, "passage")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, float32(0), out[0][0])
	assert.Equal(t, float32(1), out[1][0])
}

func TestRemoteProvider_EmptyInputShortCircuits(t *testing.T) {
	p := NewRemoteProvider(Config{Endpoint: "http://unused.invalid"})
	out, err := p.Embed(context.Background(), nil, "query")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRemoteProvider_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	defer srv.Close()

	p := NewRemoteProvider(Config{Endpoint: srv.URL, Dimensions: 2, MaxRetries: 3})
	out, err := p.Embed(context.Background(), []string{"x"}, "query")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRemoteProvider_NonRetryable4xxFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewRemoteProvider(Config{Endpoint: srv.URL, MaxRetries: 3})
	_, err := p.Embed(context.Background(), []string{"x"}, "query")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRemoteProvider_DimensionsAndClose(t *testing.T) {
	p := NewRemoteProvider(Config{Endpoint: "http://unused.invalid", Dimensions: 768})
	assert.Equal(t, 768, p.Dimensions())
	assert.NoError(t, p.Close())
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxRetries)
}
