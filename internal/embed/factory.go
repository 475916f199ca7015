package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/VioletCranberry/cocosearch/internal/embed/client"
)

// Config contains configuration for creating an embedding provider.
type Config struct {
	// Provider selects the backing implementation: "remote" (default) or
	// "mock" (for testing).
	Provider string

	// Endpoint is the base URL of the remote embedding service.
	Endpoint string

	// Dimensions is the fixed vector size the service produces.
	Dimensions int

	// Timeout bounds a single embed request. Defaults to 30s.
	Timeout time.Duration
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(config Config) (Provider, error) {
	switch config.Provider {
	case "remote", "":
		if config.Endpoint == "" {
			return nil, fmt.Errorf("embed: remote provider requires an endpoint")
		}
		return newRemoteProviderAdapter(client.Config{
			Endpoint:   config.Endpoint,
			Dimensions: config.Dimensions,
			Timeout:    config.Timeout,
		}), nil

	case "mock":
		return NewMockProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: remote, mock)", config.Provider)
	}
}

// remoteProviderAdapter adapts client.RemoteProvider's string-mode Embed to
// the Provider interface's typed EmbedMode.
type remoteProviderAdapter struct {
	inner *client.RemoteProvider
}

func newRemoteProviderAdapter(cfg client.Config) *remoteProviderAdapter {
	return &remoteProviderAdapter{inner: client.NewRemoteProvider(cfg)}
}

func (a *remoteProviderAdapter) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	return a.inner.Embed(ctx, texts, string(mode))
}

func (a *remoteProviderAdapter) Dimensions() int { return a.inner.Dimensions() }
func (a *remoteProviderAdapter) Close() error    { return a.inner.Close() }
