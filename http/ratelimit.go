package http

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per host plus a backoff window opened
// by 429/503 responses.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	backoff  map[string]*BackoffState
	mu       sync.Mutex
	config   RateLimiterConfig
}

// BackoffState tracks rate limit backoff for a host.
type BackoffState struct {
	// Until is when requests may resume.
	Until time.Time
	// ConsecutiveErrors counts rate limit errors since the last success.
	ConsecutiveErrors int
}

// RateLimiterConfig defines rate limiting behavior.
type RateLimiterConfig struct {
	// DefaultRPS applies to hosts without an entry in HostRates. 0 disables limiting.
	DefaultRPS float64
	// Burst is the bucket size.
	Burst int
	// HostRates overrides DefaultRPS per host name.
	HostRates map[string]float64
	// InitialBackoff is the backoff after the first rate limit error.
	InitialBackoff time.Duration
	// MaxBackoff caps the backoff window.
	MaxBackoff time.Duration
}

// DefaultRateLimiterConfig returns conservative limits; the login flow is a
// handful of sequential calls, schedule browsing a few more.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DefaultRPS:     5,
		Burst:          5,
		HostRates:      map[string]float64{},
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.HostRates == nil {
		cfg.HostRates = map[string]float64{}
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		backoff:  make(map[string]*BackoffState),
		config:   cfg,
	}
}

// Wait blocks until the host's bucket allows a request.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}
	limiter := rl.limiter(hostOf(urlStr))
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (rl *RateLimiter) limiter(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[host]; ok {
		return l
	}
	rps, ok := rl.config.HostRates[host]
	if !ok {
		rps = rl.config.DefaultRPS
	}
	if rps <= 0 {
		rl.limiters[host] = nil
		return nil
	}
	l := rate.NewLimiter(rate.Limit(rps), rl.config.Burst)
	rl.limiters[host] = l
	return l
}

// RecordRateLimitError opens (or widens) the host's backoff window and
// returns its length.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil {
		return 0
	}
	host := hostOf(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoff[host]
	if !ok {
		state = &BackoffState{}
		rl.backoff[host] = state
	}
	state.ConsecutiveErrors++

	wait := rl.config.InitialBackoff << (state.ConsecutiveErrors - 1)
	if wait <= 0 || (rl.config.MaxBackoff > 0 && wait > rl.config.MaxBackoff) {
		wait = rl.config.MaxBackoff
	}
	if retryAfter > wait {
		wait = retryAfter
	}
	state.Until = time.Now().Add(wait)
	return wait
}

// RecordSuccess clears the host's backoff.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.backoff, hostOf(urlStr))
}

// GetBackoffState returns a copy of the host's backoff, or nil.
func (rl *RateLimiter) GetBackoffState(urlStr string) *BackoffState {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if s, ok := rl.backoff[hostOf(urlStr)]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// WaitForBackoff sleeps out any open backoff window for the host.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	state := rl.GetBackoffState(urlStr)
	if state == nil {
		return nil
	}
	wait := time.Until(state.Until)
	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return urlStr
	}
	return u.Hostname()
}
