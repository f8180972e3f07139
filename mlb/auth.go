package mlb

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	mhttp "mlbstreamer/http"
	"mlbstreamer/internal/logger"
	"mlbstreamer/internal/retry"
)

const (
	bamSDKVersion  = "3.0"
	bamSDKPlatform = "macintosh"

	grantTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"
	tokenTypeDevice    = "urn:bamtech:params:oauth:token-type:device"
	tokenTypeAccount   = "urn:bamtech:params:oauth:token-type:account"
)

type authnRequest struct {
	Username string       `json:"username"`
	Password string       `json:"password"`
	Options  authnOptions `json:"options"`
}

type authnOptions struct {
	MultiOptionalFactorEnroll bool `json:"multiOptionalFactorEnroll"`
	WarnBeforePasswordExpired bool `json:"warnBeforePasswordExpired"`
}

type authorizeParams struct {
	ClientID     string `url:"client_id"`
	RedirectURI  string `url:"redirect_uri"`
	ResponseType string `url:"response_type"`
	ResponseMode string `url:"response_mode"`
	State        string `url:"state"`
	Nonce        string `url:"nonce"`
	Prompt       string `url:"prompt"`
	SessionToken string `url:"sessionToken"`
	Scope        string `url:"scope"`
}

type deviceRequest struct {
	DeviceFamily       string         `json:"deviceFamily"`
	ApplicationRuntime string         `json:"applicationRuntime"`
	DeviceProfile      string         `json:"deviceProfile"`
	Attributes         map[string]any `json:"attributes"`
}

type tokenExchangeParams struct {
	GrantType        string `url:"grant_type"`
	Latitude         string `url:"latitude,omitempty"`
	Longitude        string `url:"longitude,omitempty"`
	Platform         string `url:"platform"`
	SubjectToken     string `url:"subject_token"`
	SubjectTokenType string `url:"subject_token_type"`
}

type entitlementParams struct {
	OS       string `url:"os"`
	DeviceID string `url:"did"`
	AppName  string `url:"appname"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// randomHex returns 64 hex characters of random state.
func randomHex() string {
	a, b := uuid.New(), uuid.New()
	return strings.ReplaceAll(a.String()+b.String(), "-", "")
}

// authenticate runs the pipeline from key discovery to the final media
// token. A failed final exchange is retried once from a fresh login.
func (s *Session) authenticate(ctx context.Context) (*oauth2.Token, error) {
	entry := logger.GetLogger().WithField("run_id", uuid.NewString())
	entry.Debug("authenticating")

	if err := s.DiscoverKeys(ctx); err != nil {
		return nil, err
	}

	cfg := retry.Once()
	cfg.OnRetry = func(attempt int, err error) {
		entry.WithError(err).Info("token exchange failed, logging in again")
		if err := s.update(func(c *Credentials) { c.SessionToken = "" }); err != nil {
			entry.WithError(err).Warn("could not persist session state")
		}
	}

	var tok *oauth2.Token
	err := retry.Do(ctx, cfg, isTokenExchangeHTTPError, func(ctx context.Context) error {
		t, err := s.runPipeline(ctx, entry)
		if err != nil {
			return err
		}
		tok = t
		return nil
	})
	var re *retry.RetryableError
	if errors.As(err, &re) {
		err = re.Err
	}
	if err != nil {
		entry.WithError(err).Debug("authentication failed")
		return nil, err
	}
	entry.WithField("expiry", tok.Expiry).Debug("authenticated")
	return tok, nil
}

// runPipeline performs steps two through seven.
func (s *Session) runPipeline(ctx context.Context, entry *log.Entry) (*oauth2.Token, error) {
	if c := s.snapshot(); c.SessionToken == "" {
		if err := s.Login(ctx); err != nil {
			return nil, err
		}
	}
	c := s.snapshot()

	entry.WithField("stage", StageAuthorize).Debug("authorizing")
	oktaToken, err := s.authorize(ctx, &c)
	if err != nil {
		return nil, &StageError{Stage: StageAuthorize, Err: err}
	}

	entry.WithField("stage", StageDevice).Debug("registering device")
	deviceToken, err := s.registerDevice(ctx, &c)
	if err != nil {
		return nil, &StageError{Stage: StageDevice, Err: err}
	}

	entry.WithField("stage", StageSession).Debug("opening device session")
	deviceID, err := s.deviceSession(ctx, deviceToken)
	if err != nil {
		return nil, &StageError{Stage: StageSession, Err: err}
	}

	entry.WithField("stage", StageEntitlement).Debug("fetching entitlement")
	entitlement, err := s.entitlement(ctx, &c, oktaToken, deviceID)
	if err != nil {
		return nil, &StageError{Stage: StageEntitlement, Err: err}
	}

	entry.WithField("stage", StageTokenExchange).Debug("exchanging entitlement for access token")
	tok, err := s.exchangeEntitlement(ctx, &c, entitlement)
	if err != nil {
		return nil, &StageError{Stage: StageTokenExchange, Err: err}
	}

	if err := s.update(func(c *Credentials) {
		c.AccessToken = tok.AccessToken
		c.AccessTokenExpiry = tok.Expiry
	}); err != nil {
		return nil, err
	}
	return tok, nil
}

// Login exchanges the username and password for a session token,
// replacing any held one.
func (s *Session) Login(ctx context.Context) error {
	c := s.snapshot()
	if c.Username == "" || c.Password == "" {
		return &StageError{Stage: StageLogin, Err: &AuthenticationError{
			Username: c.Username,
			Err:      errors.New("no username or password configured"),
		}}
	}

	logger.GetLogger().WithFields(log.Fields{"stage": StageLogin, "username": c.Username}).Debug("logging in")
	resp, err := s.client.PostJSON(ctx, s.endpoints.AuthN, authnRequest{
		Username: c.Username,
		Password: c.Password,
		Options:  authnOptions{WarnBeforePasswordExpired: true},
	}, nil)
	if err != nil {
		authErr := &AuthenticationError{Username: c.Username, StatusCode: mhttp.StatusCode(err)}
		if authErr.StatusCode == 0 {
			authErr.Err = err
		}
		return &StageError{Stage: StageLogin, Err: authErr}
	}

	var body struct {
		Status       string `json:"status"`
		SessionToken string `json:"sessionToken"`
	}
	if err := resp.JSON(&body); err != nil || body.SessionToken == "" {
		status := body.Status
		if status == "" {
			status = "no session token in response"
		}
		return &StageError{Stage: StageLogin, Err: &AuthenticationError{
			Username: c.Username,
			Err:      errors.New(strings.ToLower(status)),
		}}
	}

	return s.update(func(c *Credentials) {
		c.SessionToken = body.SessionToken
		c.AccessToken = ""
		c.AccessTokenExpiry = time.Time{}
	})
}

// authorize trades the session token for the intermediate OAuth token,
// scraped from the authorize endpoint's post-message page.
func (s *Session) authorize(ctx context.Context, c *Credentials) (string, error) {
	v, err := query.Values(authorizeParams{
		ClientID:     c.OktaClientID,
		RedirectURI:  s.endpoints.RedirectURI,
		ResponseType: "id_token token",
		ResponseMode: "okta_post_message",
		State:        randomHex(),
		Nonce:        randomHex(),
		Prompt:       "none",
		SessionToken: c.SessionToken,
		Scope:        "openid email",
	})
	if err != nil {
		return "", err
	}

	resp, err := s.client.Get(ctx, s.endpoints.Authorize+"?"+v.Encode(), nil)
	if err != nil {
		return "", err
	}

	token, ok := scrapeAccessToken(resp.Body)
	if !ok {
		// The session token is no longer accepted; force a fresh login next time.
		if err := s.update(func(c *Credentials) { c.SessionToken = "" }); err != nil {
			return "", err
		}
		return "", &ProtocolError{Stage: StageAuthorize, Detail: "no access token assignment in page"}
	}
	return token, nil
}

// scrapeAccessToken finds `data.access_token = '...'` and unescapes the
// JavaScript string literal.
func scrapeAccessToken(body []byte) (string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "data.access_token") {
			continue
		}
		start := strings.IndexByte(line, '\'')
		if start < 0 {
			continue
		}
		end := strings.IndexByte(line[start+1:], '\'')
		if end < 0 {
			continue
		}
		raw := line[start+1 : start+1+end]
		token, err := strconv.Unquote(`"` + raw + `"`)
		if err != nil || token == "" {
			return "", false
		}
		return token, true
	}
	return "", false
}

func (s *Session) bamHeaders(bearer string) map[string]string {
	return map[string]string{
		"Authorization":     "Bearer " + bearer,
		"Accept":            "application/vnd.media-service+json; version=1",
		"x-bamsdk-version":  bamSDKVersion,
		"x-bamsdk-platform": bamSDKPlatform,
		"origin":            s.endpoints.Origin,
	}
}

// registerDevice obtains a device assertion and exchanges it for a
// device-scoped token.
func (s *Session) registerDevice(ctx context.Context, c *Credentials) (*oauth2.Token, error) {
	resp, err := s.client.PostJSON(ctx, s.endpoints.Devices, deviceRequest{
		DeviceFamily:       "browser",
		ApplicationRuntime: "firefox",
		DeviceProfile:      "macosx",
		Attributes:         map[string]any{},
	}, s.bamHeaders(c.ClientAPIKey))
	if err != nil {
		return nil, err
	}

	var dev struct {
		Assertion string `json:"assertion"`
	}
	if err := resp.JSON(&dev); err != nil {
		return nil, err
	}
	if dev.Assertion == "" {
		return nil, &ProtocolError{Stage: StageDevice, Detail: "no device assertion"}
	}

	return s.exchangeToken(ctx, c, tokenExchangeParams{
		GrantType:        grantTokenExchange,
		Latitude:         "0",
		Longitude:        "0",
		Platform:         "browser",
		SubjectToken:     dev.Assertion,
		SubjectTokenType: tokenTypeDevice,
	}, StageDevice)
}

// deviceSession returns the device id for a device token.
func (s *Session) deviceSession(ctx context.Context, deviceToken *oauth2.Token) (string, error) {
	resp, err := s.client.Get(ctx, s.endpoints.Session, map[string]string{
		"Authorization": "Bearer " + deviceToken.AccessToken,
	})
	if err != nil {
		return "", err
	}

	var body struct {
		Device struct {
			ID string `json:"id"`
		} `json:"device"`
	}
	if err := resp.JSON(&body); err != nil {
		return "", err
	}
	if body.Device.ID == "" {
		return "", &ProtocolError{Stage: StageSession, Detail: "no device id"}
	}
	return body.Device.ID, nil
}

// entitlement fetches the token proving the account's media rights.
func (s *Session) entitlement(ctx context.Context, c *Credentials, oktaToken, deviceID string) (string, error) {
	v, err := query.Values(entitlementParams{OS: "browser", DeviceID: deviceID, AppName: "mlbtv_web"})
	if err != nil {
		return "", err
	}
	resp, err := s.client.Get(ctx, s.endpoints.Entitlement+"?"+v.Encode(), map[string]string{
		"Authorization": "Bearer " + oktaToken,
		"x-api-key":     c.APIKey,
	})
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(resp.Text())
	if token == "" {
		return "", &ProtocolError{Stage: StageEntitlement, Detail: "empty entitlement token"}
	}
	return token, nil
}

// exchangeEntitlement trades the entitlement token for the media access token.
func (s *Session) exchangeEntitlement(ctx context.Context, c *Credentials, entitlement string) (*oauth2.Token, error) {
	return s.exchangeToken(ctx, c, tokenExchangeParams{
		GrantType:        grantTokenExchange,
		Platform:         "browser",
		SubjectToken:     entitlement,
		SubjectTokenType: tokenTypeAccount,
	}, StageTokenExchange)
}

func (s *Session) exchangeToken(ctx context.Context, c *Credentials, params tokenExchangeParams, stage Stage) (*oauth2.Token, error) {
	v, err := query.Values(params)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.PostForm(ctx, s.endpoints.Token, v, s.bamHeaders(c.ClientAPIKey))
	if err != nil {
		return nil, err
	}

	var body tokenResponse
	if err := resp.JSON(&body); err != nil {
		return nil, err
	}
	if body.AccessToken == "" || body.ExpiresIn <= 0 {
		return nil, &ProtocolError{Stage: stage, Detail: "token response missing access_token or expires_in"}
	}

	tok := &oauth2.Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		TokenType:    body.TokenType,
		Expiry:       s.now().UTC().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	return tok, nil
}
