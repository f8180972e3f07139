// Package mlb talks to the MLB.tv provider: it authenticates, resolves
// games and feeds, and hands out playable streams.
//
// A Session owns the persisted credential state for one provider account.
// Pass it explicitly to everything that needs tokens.
package mlb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"mlbstreamer/cache"
	mhttp "mlbstreamer/http"
	"mlbstreamer/internal/logger"
)

// Provider is the provider name used for credential and cookie files.
const Provider = "mlb"

// Endpoints is the provider's wire contract. Content and Stream are
// fmt templates taking the game id and media id.
type Endpoints struct {
	APIKeyPage  string
	OktaJS      string
	AuthN       string
	Authorize   string
	RedirectURI string
	Devices     string
	Token       string
	Session     string
	Entitlement string
	Content     string
	Schedule    string
	Teams       string
	Stream      string
	Airings     string
	Origin      string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		APIKeyPage:  "https://www.mlb.com/tv/g490865/",
		OktaJS:      "https://www.mlbstatic.com/mlb.com/vendor/mlb-okta/mlb-okta.js",
		AuthN:       "https://ids.mlb.com/api/v1/authn",
		Authorize:   "https://ids.mlb.com/oauth2/aus1m088yK07noBfh356/v1/authorize",
		RedirectURI: "https://www.mlb.com/login",
		Devices:     "https://us.edge.bamgrid.com/devices",
		Token:       "https://us.edge.bamgrid.com/token",
		Session:     "https://us.edge.bamgrid.com/session",
		Entitlement: "https://media-entitlement.mlb.com/api/v3/jwt",
		Content:     "http://statsapi.mlb.com/api/v1/game/%d/content",
		Schedule:    "https://statsapi.mlb.com/api/v1/schedule",
		Teams:       "https://statsapi.mlb.com/api/v1/teams",
		Stream:      "https://edge.svcs.mlb.com/media/%s/scenarios/browser~csai",
		Airings:     "https://search-api-mlbtv.mlb.com/svc/search/v2/graphql/persisted/query/core/Airings",
		Origin:      "https://www.mlb.com",
	}
}

// Options configures NewSession.
type Options struct {
	// Dir holds the session and cookie files.
	Dir string
	// Username and Password from configuration. When they differ from the
	// persisted ones the persisted tokens are discarded.
	Username string
	Password string

	Endpoints Endpoints
	HTTP      *mhttp.Config

	// Cache fronts cacheable calls; nil disables caching.
	Cache    *cache.Cache
	UseCache bool

	// Keys replaces page scraping for key discovery.
	Keys KeyDiscoverer

	// Now replaces time.Now.
	Now func() time.Time
}

// Session is an authenticated provider session.
type Session struct {
	endpoints Endpoints
	store     *CredentialStore
	cookies   *mhttp.SessionManager
	client    *mhttp.Client
	cache     *cache.Cache
	useCache  bool
	keys      KeyDiscoverer
	now       func() time.Time

	mu        sync.Mutex
	state     *Credentials
	loggedOut bool

	refresh singleflight.Group
}

var _ oauth2.TokenSource = (*Session)(nil)

// NewSession loads persisted state for the account, opens the cookie jar
// and purges stale cache entries. It does not touch the network.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	store := NewCredentialStore(opts.Dir, Provider)
	state, err := store.Load()
	if err != nil {
		return nil, err
	}

	changed := false
	if opts.Username != "" && (opts.Username != state.Username || opts.Password != state.Password) {
		if state.Username != "" {
			logger.GetLogger().WithField("username", opts.Username).Debug("credentials changed, discarding saved tokens")
		}
		state.Username = opts.Username
		state.Password = opts.Password
		state.clearTokens()
		changed = true
	}

	cookies, err := mhttp.NewSessionManager(mhttp.SessionConfig{
		CookieFile: store.CookiePath(),
		CookieURLs: []string{opts.Endpoints.Origin, opts.Endpoints.AuthN, opts.Endpoints.Token},
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		endpoints: opts.Endpoints,
		store:     store,
		cookies:   cookies,
		client:    cookies.GetClient(opts.HTTP),
		cache:     opts.Cache,
		useCache:  opts.UseCache && opts.Cache != nil,
		keys:      opts.Keys,
		now:       opts.Now,
		state:     state,
	}
	if s.keys == nil {
		s.keys = &pageKeyDiscoverer{session: s}
	}

	if changed {
		if err := s.store.Save(state); err != nil {
			return nil, err
		}
	}

	if s.useCache {
		if _, err := s.cache.Purge(ctx); err != nil {
			logger.GetLogger().WithError(err).Warn("cache purge failed")
		}
	}
	return s, nil
}

// update mutates the credential state and persists it before returning.
func (s *Session) update(fn func(*Credentials)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
	s.loggedOut = false
	if err := s.store.Save(s.state); err != nil {
		return err
	}
	return s.cookies.SaveCookies()
}

// snapshot returns a copy of the current state.
func (s *Session) snapshot() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state
}

// Username returns the account name.
func (s *Session) Username() string {
	return s.snapshot().Username
}

// LoggedIn reports whether an unexpired access token is held. It does not
// touch the network.
func (s *Session) LoggedIn() bool {
	c := s.snapshot()
	return c.TokenValid(s.now())
}

// AccessToken returns a valid media access token, running the
// authentication pipeline first when the held one is missing or expired.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	tok, err := s.TokenContext(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	return s.TokenContext(context.Background())
}

// TokenContext returns a valid token. Concurrent callers share one refresh.
func (s *Session) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	if c := s.snapshot(); c.TokenValid(s.now()) {
		return &oauth2.Token{AccessToken: c.AccessToken, Expiry: c.AccessTokenExpiry}, nil
	}

	v, err, _ := s.refresh.Do("token", func() (any, error) {
		if c := s.snapshot(); c.TokenValid(s.now()) {
			return &oauth2.Token{AccessToken: c.AccessToken, Expiry: c.AccessTokenExpiry}, nil
		}
		return s.authenticate(ctx)
	})
	if err != nil {
		return nil, err
	}
	tok := v.(*oauth2.Token)
	if !s.now().Before(tok.Expiry) {
		return nil, &ProtocolError{Stage: StageTokenExchange, Detail: "provider issued an already expired token"}
	}
	return tok, nil
}

// Headers returns the headers a player must send with stream requests.
func (s *Session) Headers(ctx context.Context) (map[string]string, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": token}, nil
}

// Cookies returns the session cookies a player must send.
func (s *Session) Cookies() []*http.Cookie {
	return s.cookies.AllCookies()
}

// Logout forgets every token and removes the session and cookie files.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.state.clearTokens()
	s.loggedOut = true
	s.mu.Unlock()

	if err := s.cookies.Destroy(); err != nil {
		return err
	}
	return s.store.Destroy()
}

// Close saves cookies and releases connections. The cache belongs to the
// caller and is left open.
func (s *Session) Close() error {
	s.mu.Lock()
	loggedOut := s.loggedOut
	s.mu.Unlock()

	var err error
	if !loggedOut {
		err = s.cookies.Close()
	}
	return errors.Join(err, s.client.Close())
}

// fetch GETs url through the response cache.
func (s *Session) fetch(ctx context.Context, url string, tier time.Duration, headers map[string]string) ([]byte, error) {
	return s.cache.GetOrFetch(ctx, url, func(ctx context.Context) ([]byte, error) {
		resp, err := s.client.Get(ctx, url, headers)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}, tier, s.useCache)
}

// invalidate drops a cached response that turned out to be unusable.
func (s *Session) invalidate(ctx context.Context, url string) {
	if !s.useCache {
		return
	}
	if err := s.cache.Invalidate(ctx, url); err != nil {
		logger.GetLogger().WithError(err).WithField("url", url).Warn("cache invalidate failed")
	}
}

func (s *Session) contentURL(gameID int) string {
	return fmt.Sprintf(s.endpoints.Content, gameID)
}

func (s *Session) streamURL(mediaID string) string {
	return fmt.Sprintf(s.endpoints.Stream, mediaID)
}

// EndpointsAt returns the endpoint set rooted at base, for a mirror or a
// local test server.
func EndpointsAt(base string) Endpoints {
	return Endpoints{
		APIKeyPage:  base + "/tv/",
		OktaJS:      base + "/okta.js",
		AuthN:       base + "/api/v1/authn",
		Authorize:   base + "/oauth2/v1/authorize",
		RedirectURI: base + "/login",
		Devices:     base + "/devices",
		Token:       base + "/token",
		Session:     base + "/session",
		Entitlement: base + "/api/v3/jwt",
		Content:     base + "/api/v1/game/%d/content",
		Schedule:    base + "/api/v1/schedule",
		Teams:       base + "/api/v1/teams",
		Stream:      base + "/media/%s/scenarios/browser~csai",
		Airings:     base + "/airings",
		Origin:      base,
	}
}
