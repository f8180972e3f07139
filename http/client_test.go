package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unlimitedConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiter.DefaultRPS = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestClientGetSetsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(unlimitedConfig())
	resp, err := client.Get(context.Background(), server.URL, map[string]string{"Authorization": "Bearer abc"})
	require.NoError(t, err)

	var body struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, resp.JSON(&body))
	assert.True(t, body.OK)
}

func TestClientPostFormAndJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/form":
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.Equal(t, "a=1&b=two", string(data))
		case "/json":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.JSONEq(t, `{"username":"u"}`, string(data))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(unlimitedConfig())
	_, err := client.PostForm(context.Background(), server.URL+"/form", url.Values{"a": {"1"}, "b": {"two"}}, nil)
	require.NoError(t, err)
	_, err = client.PostJSON(context.Background(), server.URL+"/json", map[string]string{"username": "u"}, nil)
	require.NoError(t, err)
}

func TestClientHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("denied"))
	}))
	defer server.Close()

	client := New(unlimitedConfig())
	_, err := client.Get(context.Background(), server.URL, nil)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "denied", string(httpErr.Body))
	assert.True(t, IsHTTPError(err))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
}

func TestClientDoesNotRetryByDefault(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(unlimitedConfig())
	_, err := client.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClientRetryBacksOffWhenEnabled(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	cfg := unlimitedConfig()
	cfg.Retry.MaxRetries = 2
	cfg.Retry.InitialBackoff = 5 * time.Millisecond
	cfg.Retry.MaxBackoff = 20 * time.Millisecond
	client := New(cfg)

	start := time.Now()
	resp, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestClientRetryStopsOnClientError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := unlimitedConfig()
	cfg.Retry.MaxRetries = 3
	cfg.Retry.InitialBackoff = time.Millisecond
	client := New(cfg)

	_, err := client.Get(context.Background(), server.URL, nil)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, 1, calls)
}

func TestClientRateLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := unlimitedConfig()
	cfg.RateLimiter.InitialBackoff = time.Millisecond
	client := New(cfg)
	_, err := client.Get(context.Background(), server.URL, nil)

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, http.StatusTooManyRequests, rlErr.StatusCode)
	assert.True(t, IsHTTPError(err))
	assert.NotNil(t, client.rateLimiter.GetBackoffState(server.URL))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://ids.example.com/authorize", redactURL("https://ids.example.com/authorize?sessionToken=x"))
	assert.Equal(t, "https://ids.example.com/", redactURL("https://ids.example.com/"))
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Duration(0), parseRetryAfter(h))
	h.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, parseRetryAfter(h))
	h.Set("Retry-After", "soon")
	assert.Equal(t, time.Duration(0), parseRetryAfter(h))
}
