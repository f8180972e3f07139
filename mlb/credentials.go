package mlb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"mlbstreamer/internal/storage"
)

const credentialsVersion = 1

// Credentials is the persisted session state for one provider.
type Credentials struct {
	Version           int       `yaml:"version"`
	Username          string    `yaml:"username"`
	Password          string    `yaml:"password"`
	APIKey            string    `yaml:"api_key,omitempty"`
	ClientAPIKey      string    `yaml:"client_api_key,omitempty"`
	OktaClientID      string    `yaml:"okta_client_id,omitempty"`
	SessionToken      string    `yaml:"session_token,omitempty"`
	AccessToken       string    `yaml:"access_token,omitempty"`
	AccessTokenExpiry time.Time `yaml:"access_token_expiry,omitempty"`
}

// TokenValid reports whether the access token may be used at now.
func (c *Credentials) TokenValid(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.AccessTokenExpiry)
}

// HasKeys reports whether every scraped key is present.
func (c *Credentials) HasKeys() bool {
	return c.APIKey != "" && c.ClientAPIKey != "" && c.OktaClientID != ""
}

// clearTokens drops everything derived from the login.
func (c *Credentials) clearTokens() {
	c.SessionToken = ""
	c.AccessToken = ""
	c.AccessTokenExpiry = time.Time{}
}

// CredentialStore reads and writes one provider's session and cookie files.
// Files are replaced whole on every save. Concurrent processes are not
// coordinated; the last one to save wins.
type CredentialStore struct {
	dir      string
	provider string
}

// NewCredentialStore returns a store for provider under dir.
func NewCredentialStore(dir, provider string) *CredentialStore {
	return &CredentialStore{dir: dir, provider: provider}
}

// Path is the session file.
func (s *CredentialStore) Path() string {
	return filepath.Join(s.dir, s.provider+".session")
}

// CookiePath is the cookie jar file.
func (s *CredentialStore) CookiePath() string {
	return filepath.Join(s.dir, s.provider+".cookies")
}

// Load reads the session file. A missing file yields empty credentials.
func (s *CredentialStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{Version: credentialsVersion}, nil
		}
		return nil, &storage.StorageError{Op: "read", Entity: "session", ID: s.Path(), Err: err}
	}

	var c Credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &storage.StorageError{
			Op: "read", Entity: "session", ID: s.Path(),
			Err: fmt.Errorf("%w: %v", storage.ErrStorageCorrupt, err),
		}
	}
	if c.Version == 0 {
		c.Version = credentialsVersion
	}
	return &c, nil
}

// Save atomically replaces the session file.
func (s *CredentialStore) Save(c *Credentials) error {
	out := *c
	out.Version = credentialsVersion
	data, err := yaml.Marshal(&out)
	if err != nil {
		return &storage.StorageError{Op: "write", Entity: "session", ID: s.Path(), Err: err}
	}
	return storage.WriteFile(s.Path(), data, 0600)
}

// Destroy removes the session and cookie files.
func (s *CredentialStore) Destroy() error {
	for _, p := range []string{s.Path(), s.CookiePath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &storage.StorageError{Op: "remove", Entity: "session", ID: p, Err: err}
		}
	}
	return nil
}
