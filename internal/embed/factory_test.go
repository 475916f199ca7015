package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Mock(t *testing.T) {
	p, err := NewProvider(Config{Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, 384, p.Dimensions())
}

func TestNewProvider_RemoteRequiresEndpoint(t *testing.T) {
	_, err := NewProvider(Config{Provider: "remote"})
	require.Error(t, err)
}

func TestNewProvider_RemoteWithEndpoint(t *testing.T) {
	p, err := NewProvider(Config{Provider: "remote", Endpoint: "http://127.0.0.1:8121", Dimensions: 768})
	require.NoError(t, err)
	assert.Equal(t, 768, p.Dimensions())
	assert.NoError(t, p.Close())
}

func TestNewProvider_UnknownRejected(t *testing.T) {
	_, err := NewProvider(Config{Provider: "openai"})
	require.Error(t, err)
}
