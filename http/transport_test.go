package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTransportConfig(t *testing.T) {
	cfg := DefaultTransportConfig()

	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 4, cfg.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, cfg.IdleConnTimeout)
	assert.True(t, cfg.ForceAttemptHTTP2)
}

func TestTransportConfiguration(t *testing.T) {
	cfg := &Config{
		Timeout:   30 * time.Second,
		UserAgent: "test/1.0",
		Transport: TransportConfig{
			MaxIdleConns:        15,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     60 * time.Second,
		},
	}

	client := New(cfg)
	defer client.Close()

	transport, ok := client.base.Transport.(*http.Transport)
	require.True(t, ok, "transport is not *http.Transport")

	assert.Equal(t, 15, transport.MaxIdleConns)
	assert.Equal(t, 8, transport.MaxIdleConnsPerHost)
	assert.Equal(t, 60*time.Second, transport.IdleConnTimeout)
	assert.False(t, transport.ForceAttemptHTTP2)
	assert.False(t, transport.DisableKeepAlives)
	assert.Equal(t, 30*time.Second, client.base.Timeout)
}

func TestNewClientNilConfigUsesDefaults(t *testing.T) {
	client := New(nil)
	defer client.Close()

	transport := client.base.Transport.(*http.Transport)
	assert.True(t, transport.ForceAttemptHTTP2)
	assert.Nil(t, client.base.Jar)
	assert.Equal(t, DefaultUserAgent, client.config.UserAgent)
}

func TestClientCloseTwice(t *testing.T) {
	client := New(DefaultConfig())

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}
