// Package client implements the HTTP transport for the remote embedding
// service. SPEC_FULL.md §1 treats the embedder as an external service, not
// a process this module spawns, so RemoteProvider only ever dials an
// already-running endpoint (grounded on the teacher's
// internal/embed/client/local.go HTTP request/response shapes, with the
// binary-spawning and health-poll machinery removed).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Config configures a RemoteProvider.
type Config struct {
	// Endpoint is the base URL of the embedding service, e.g.
	// "http://127.0.0.1:8121".
	Endpoint string
	// Dimensions is the fixed vector size the service produces.
	Dimensions int
	// Timeout bounds a single HTTP request. Defaults to 30s.
	Timeout time.Duration
	// MaxRetries bounds the number of retry attempts on a transient
	// failure (network error or 5xx). Defaults to 2 (3 attempts total).
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	return c
}

// RemoteProvider calls a remote embedding service over HTTP.
type RemoteProvider struct {
	cfg        Config
	httpClient *http.Client
}

// NewRemoteProvider builds a RemoteProvider. It does not verify the
// endpoint is reachable; the first Embed call surfaces connectivity
// errors.
func NewRemoteProvider(cfg Config) *RemoteProvider {
	cfg = cfg.withDefaults()
	return &RemoteProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Mode  string   `json:"mode"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends texts to the remote service and returns their embeddings, in
// order. Transient failures (network errors, 5xx responses) are retried
// with exponential backoff up to cfg.MaxRetries times.
func (p *RemoteProvider) Embed(ctx context.Context, texts []string, mode string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Texts: texts, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 200 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		embeddings, retryable, err := p.doRequest(ctx, body)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("embed request failed after retries: %w", lastErr)
}

func (p *RemoteProvider) doRequest(ctx context.Context, body []byte) ([][]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, false, fmt.Errorf("decode embed response: %w", err)
	}
	return decoded.Embeddings, false, nil
}

// Dimensions reports the configured vector size.
func (p *RemoteProvider) Dimensions() int {
	return p.cfg.Dimensions
}

// Close releases the underlying HTTP transport's idle connections.
func (p *RemoteProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
