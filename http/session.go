package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"

	"mlbstreamer/internal/storage"
)

// SessionManager owns the cookie jar shared by every provider call and
// persists it to a cookie file between runs.
type SessionManager struct {
	jar    http.CookieJar
	mu     sync.RWMutex
	config SessionConfig
}

// SessionConfig configures session behavior.
type SessionConfig struct {
	// CookieFile is where cookies are persisted. Empty disables persistence.
	CookieFile string

	// CookieURLs are the sites whose cookies are saved and restored.
	CookieURLs []string

	// UserAgent for HTTP requests.
	UserAgent string

	// HeadersToAdd are custom headers to include in all requests.
	HeadersToAdd map[string]string
}

// cookieFile is the on-disk shape: site URL -> cookies.
type cookieFile map[string][]*http.Cookie

// DefaultSessionConfig returns defaults without persistence.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		UserAgent:    DefaultUserAgent,
		HeadersToAdd: make(map[string]string),
	}
}

// NewSessionManager creates a session manager and loads any saved cookies.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HeadersToAdd == nil {
		cfg.HeadersToAdd = make(map[string]string)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	sm := &SessionManager{jar: jar, config: cfg}
	if err := sm.LoadCookies(); err != nil {
		return nil, err
	}
	return sm, nil
}

// GetClient returns a Client that sends this session's cookies and headers.
func (sm *SessionManager) GetClient(cfg *Config) *Client {
	return newClient(cfg, sessionJar{sm}, sm)
}

// sessionJar routes a Client's cookie traffic through the manager, so
// clients keep working after ClearCookies swaps the underlying jar.
type sessionJar struct{ sm *SessionManager }

func (j sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.sm.mu.Lock()
	defer j.sm.mu.Unlock()
	j.sm.jar.SetCookies(u, cookies)
}

func (j sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.sm.mu.RLock()
	defer j.sm.mu.RUnlock()
	return j.sm.jar.Cookies(u)
}

// AddHeader adds a header to be included in all requests.
func (sm *SessionManager) AddHeader(key, value string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.config.HeadersToAdd[key] = value
}

// GetHeaders returns the headers to add to requests.
func (sm *SessionManager) GetHeaders() map[string]string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	headers := make(map[string]string, len(sm.config.HeadersToAdd)+1)
	for k, v := range sm.config.HeadersToAdd {
		headers[k] = v
	}
	headers["User-Agent"] = sm.config.UserAgent
	return headers
}

// Cookie returns the value of the named cookie for rawURL.
func (sm *SessionManager) Cookie(rawURL, name string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, c := range sm.jar.Cookies(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// AllCookies returns every cookie held for the configured sites, first
// occurrence of each name wins.
func (sm *SessionManager) AllCookies() []*http.Cookie {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*http.Cookie
	for _, raw := range sm.config.CookieURLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		for _, c := range sm.jar.Cookies(u) {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	return out
}

// SaveCookies rewrites the cookie file atomically.
func (sm *SessionManager) SaveCookies() error {
	if sm.config.CookieFile == "" {
		return nil
	}

	sm.mu.RLock()
	file := make(cookieFile)
	for _, raw := range sm.config.CookieURLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if cookies := sm.jar.Cookies(u); len(cookies) > 0 {
			file[raw] = cookies
		}
	}
	sm.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	return storage.WriteFile(sm.config.CookieFile, data, 0600)
}

// LoadCookies restores cookies from the cookie file. A missing file is not an error.
func (sm *SessionManager) LoadCookies() error {
	if sm.config.CookieFile == "" {
		return nil
	}

	data, err := os.ReadFile(sm.config.CookieFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &storage.StorageError{Op: "read", Entity: "cookies", ID: sm.config.CookieFile, Err: err}
	}

	var file cookieFile
	if err := json.Unmarshal(data, &file); err != nil {
		return &storage.StorageError{Op: "read", Entity: "cookies", ID: sm.config.CookieFile, Err: storage.ErrStorageCorrupt}
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	for raw, cookies := range file {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		sm.jar.SetCookies(u, cookies)
	}
	return nil
}

// ClearCookies drops every cookie held in memory.
func (sm *SessionManager) ClearCookies() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.jar = jar
	return nil
}

// Destroy clears cookies and removes the cookie file.
func (sm *SessionManager) Destroy() error {
	if err := sm.ClearCookies(); err != nil {
		return err
	}
	if sm.config.CookieFile == "" {
		return nil
	}
	if err := os.Remove(sm.config.CookieFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &storage.StorageError{Op: "remove", Entity: "cookies", ID: sm.config.CookieFile, Err: err}
	}
	return nil
}

// Close saves cookies.
func (sm *SessionManager) Close() error {
	return sm.SaveCookies()
}
