package mlb

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"mlbstreamer/cache"
	"mlbstreamer/internal/logger"
)

var (
	apiKeyRe       = regexp.MustCompile(`"apiKey":"([^"]+)"`)
	clientAPIKeyRe = regexp.MustCompile(`"clientApiKey":"([^"]+)"`)
	oktaClientIDRe = regexp.MustCompile(`production:\{clientId:"([^"]+)",`)
)

// Keys are the static credentials embedded in the provider's web player.
type Keys struct {
	APIKey       string
	ClientAPIKey string
	OktaClientID string
}

// KeyDiscoverer finds the provider's embedded keys. Failure to find one is
// a *ConfigurationError.
type KeyDiscoverer interface {
	DiscoverKeys(ctx context.Context) (Keys, error)
}

// pageKeyDiscoverer scrapes the web player page and the login script.
type pageKeyDiscoverer struct {
	session *Session
}

func (d *pageKeyDiscoverer) DiscoverKeys(ctx context.Context) (Keys, error) {
	s := d.session
	page, err := s.fetch(ctx, s.endpoints.APIKeyPage, cache.Medium, nil)
	if err != nil {
		return Keys{}, err
	}

	var keys Keys
	for _, script := range scriptBodies(page) {
		if keys.APIKey == "" {
			keys.APIKey = firstGroup(apiKeyRe, script)
		}
		if keys.ClientAPIKey == "" {
			keys.ClientAPIKey = firstGroup(clientAPIKeyRe, script)
		}
	}
	if keys.APIKey == "" {
		s.invalidate(ctx, s.endpoints.APIKeyPage)
		return Keys{}, &ConfigurationError{Key: "apiKey", Source: s.endpoints.APIKeyPage}
	}
	if keys.ClientAPIKey == "" {
		s.invalidate(ctx, s.endpoints.APIKeyPage)
		return Keys{}, &ConfigurationError{Key: "clientApiKey", Source: s.endpoints.APIKeyPage}
	}

	js, err := s.fetch(ctx, s.endpoints.OktaJS, cache.Medium, nil)
	if err != nil {
		return Keys{}, err
	}
	keys.OktaClientID = firstGroup(oktaClientIDRe, string(js))
	if keys.OktaClientID == "" {
		s.invalidate(ctx, s.endpoints.OktaJS)
		return Keys{}, &ConfigurationError{Key: "okta client id", Source: s.endpoints.OktaJS}
	}
	return keys, nil
}

// scriptBodies returns the text of every <script> element in page.
func scriptBodies(page []byte) []string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			if b.Len() > 0 {
				out = append(out, b.String())
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// DiscoverKeys fills in any missing embedded keys and persists them.
func (s *Session) DiscoverKeys(ctx context.Context) error {
	if c := s.snapshot(); c.HasKeys() {
		return nil
	}

	logger.GetLogger().WithField("stage", StageKeys).Debug("discovering provider keys")
	keys, err := s.keys.DiscoverKeys(ctx)
	if err != nil {
		return &StageError{Stage: StageKeys, Err: err}
	}
	return s.update(func(c *Credentials) {
		c.APIKey = keys.APIKey
		c.ClientAPIKey = keys.ClientAPIKey
		c.OktaClientID = keys.OktaClientID
	})
}
