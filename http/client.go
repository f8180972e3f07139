// Package http is the provider transport: a net/http client with session
// cookies, default headers, per-host rate limiting and typed status errors.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mlbstreamer/internal/logger"
	"mlbstreamer/internal/retry"
)

// DefaultUserAgent mimics the desktop browser the provider's web player expects.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.12; rv:56.0) " +
	"Gecko/20100101 Firefox/56.0.4"

// Client wraps an HTTP client with rate limiting, session headers and
// typed error handling.
type Client struct {
	base        *http.Client
	config      *Config
	rateLimiter *RateLimiter
	session     *SessionManager
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout for individual HTTP requests.
	Timeout time.Duration

	// Retry applies exponential backoff with jitter to transport failures,
	// 429s and 5xx. The default performs no retries: the login flow is
	// stateful and only its final token exchange retries, under its own
	// policy. Library callers reading idempotent endpoints may opt in.
	Retry retry.Config

	// UserAgent for HTTP requests.
	UserAgent string

	// RateLimiter configuration.
	RateLimiter RateLimiterConfig

	// Transport configures connection pooling.
	Transport TransportConfig
}

// TransportConfig configures the HTTP transport.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	ForceAttemptHTTP2   bool
}

// DefaultConfig returns defaults for provider calls.
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		Retry:       retry.DefaultConfig(),
		UserAgent:   DefaultUserAgent,
		RateLimiter: DefaultRateLimiterConfig(),
		Transport:   DefaultTransportConfig(),
	}
}

// DefaultTransportConfig returns sensible defaults for HTTP transport configuration.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// New creates a client without a session (no cookie jar).
func New(cfg *Config) *Client {
	return newClient(cfg, nil, nil)
}

func newClient(cfg *Config, jar http.CookieJar, sm *SessionManager) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Transport.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
		ForceAttemptHTTP2:   cfg.Transport.ForceAttemptHTTP2,
	}

	return &Client{
		base: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			Jar:       jar,
		},
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.RateLimiter),
		session:     sm,
	}
}

// Response represents an HTTP response with status code and body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, headers)
}

// PostForm posts url-encoded values.
func (c *Client) PostForm(ctx context.Context, url string, values url.Values, headers map[string]string) (*Response, error) {
	h := mergeHeaders(headers, "Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, http.MethodPost, url, []byte(values.Encode()), h)
}

// PostJSON posts v encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, url string, v any, headers map[string]string) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	h := mergeHeaders(headers, "Content-Type", "application/json")
	return c.Do(ctx, http.MethodPost, url, body, h)
}

func mergeHeaders(headers map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	out[key] = value
	for k, v := range headers {
		out[k] = v
	}
	return out
}

// Do performs an HTTP request. Non-2xx responses come back as *HTTPError,
// 429/503 as *RateLimitError.
func (c *Client) Do(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) (*Response, error) {
	if err := c.rateLimiter.WaitForBackoff(ctx, urlStr); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, urlStr); err != nil {
		return nil, err
	}

	var result *Response

	err := retry.Do(ctx, c.config.Retry, isRetryableHTTPError, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
		if err != nil {
			return retry.Permanent(err)
		}

		if c.session != nil {
			for k, v := range c.session.GetHeaders() {
				req.Header.Set(k, v)
			}
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		logger.GetLogger().WithFields(map[string]interface{}{
			"method": method,
			"url":    redactURL(urlStr),
		}).Trace("http request")

		resp, err := c.base.Do(req)
		if err != nil {
			return fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			retryAfter := parseRetryAfter(resp.Header)
			if recommended := c.rateLimiter.RecordRateLimitError(urlStr, retryAfter); recommended > retryAfter {
				retryAfter = recommended
			}
			return &RateLimitError{StatusCode: resp.StatusCode, URL: urlStr, RetryAfter: retryAfter}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{StatusCode: resp.StatusCode, URL: urlStr, Body: respBody}
		}

		result = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       respBody,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrNoResponse
	}

	c.rateLimiter.RecordSuccess(urlStr)
	return result, nil
}

// isRetryableHTTPError retries transport failures, rate limits and 5xx.
func isRetryableHTTPError(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	if code := StatusCode(err); code != 0 {
		return code == http.StatusTooManyRequests || code >= 500
	}
	return true
}

// parseRetryAfter extracts the Retry-After header value.
func parseRetryAfter(header http.Header) time.Duration {
	retryAfter := header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}

// redactURL drops the query string, which may carry session tokens.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.base != nil {
		c.base.CloseIdleConnections()
	}
	return nil
}
