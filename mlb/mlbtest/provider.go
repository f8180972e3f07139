// Package mlbtest runs an in-memory stand-in for the provider's web, auth,
// stats and media APIs. Point a session at it with mlb.EndpointsAt(p.URL).
package mlbtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Fixed values the fake hands out.
const (
	APIKey       = "api-key-1"
	ClientAPIKey = "client-key-1"
	OktaClientID = "okta-client-1"
	OktaToken    = "okta-token-1"
	DeviceToken  = "device-token-1"
	DeviceID     = "device-1"
	Entitlement  = "entitlement-1"
	Username     = "fan@example.com"
	Password     = "hunter2"
	StreamURL    = "https://hls.example.com/master.m3u8"
)

// Provider is a fake provider. Exported fields may be changed between calls.
type Provider struct {
	URL string

	// KeyPage is served for the web player page.
	KeyPage string
	// OktaJS is served for the login script.
	OktaJS string
	// AuthorizePage is served by the authorize endpoint.
	AuthorizePage string
	// ExpiresIn is the lifetime of issued media tokens, in seconds.
	ExpiresIn int
	// TokenFailures makes that many final token exchanges fail with 500.
	TokenFailures int
	// Teams, Content, Airings and StreamBody are JSON bodies.
	Teams      string
	Content    map[int]string
	Airings    string
	StreamBody string
	// Schedules maps a canonical query ("teamId=147&date=2024-04-10" or
	// "gamePk=1") to a JSON body.
	Schedules map[string]string
	// StreamStatus, when set, is returned by the stream endpoint.
	StreamStatus int

	srv    *httptest.Server
	mu     sync.Mutex
	hits   map[string]int
	issued int
}

// New starts a fake provider. Call Close when done.
func New() *Provider {
	p := &Provider{
		KeyPage: `<html><head><script>window.mlbConfig = {"apiKey":"` + APIKey +
			`","clientApiKey":"` + ClientAPIKey + `"};</script></head><body></body></html>`,
		OktaJS:        `var c={production:{clientId:"` + OktaClientID + `",issuer:"x"}};`,
		AuthorizePage: "<script>\ndata.access_token = 'okta\\x2Dtoken\\x2D1';\ndata.token_type = 'Bearer';\n</script>",
		ExpiresIn:     3600,
		Teams:         DefaultTeams,
		Content:       map[int]string{},
		Schedules:     map[string]string{},
		StreamBody:    `{"stream":{"complete":"` + StreamURL + `"}}`,
		hits:          map[string]int{},
	}
	p.srv = httptest.NewServer(http.HandlerFunc(p.serve))
	p.URL = p.srv.URL
	return p
}

// Close stops the server.
func (p *Provider) Close() { p.srv.Close() }

// Hits reports how many requests reached path.
func (p *Provider) Hits(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

// MediaToken returns the nth media token the fake issues, counting from 1.
func MediaToken(n int) string { return fmt.Sprintf("media-token-%d", n) }

// CurrentToken is the last media token issued.
func (p *Provider) CurrentToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return MediaToken(p.issued)
}

func (p *Provider) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.hits[r.URL.Path]++
	p.mu.Unlock()

	switch {
	case r.URL.Path == "/tv/":
		io.WriteString(w, p.KeyPage)
	case r.URL.Path == "/okta.js":
		io.WriteString(w, p.OktaJS)
	case r.URL.Path == "/api/v1/authn":
		p.authn(w, r)
	case r.URL.Path == "/oauth2/v1/authorize":
		q := r.URL.Query()
		if q.Get("client_id") != OktaClientID || q.Get("sessionToken") == "" || len(q.Get("state")) != 64 {
			http.Error(w, "bad authorize request", http.StatusBadRequest)
			return
		}
		io.WriteString(w, p.AuthorizePage)
	case r.URL.Path == "/devices":
		if r.Header.Get("Authorization") != "Bearer "+ClientAPIKey {
			http.Error(w, "bad client key", http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"assertion":"assertion-1"}`)
	case r.URL.Path == "/token":
		p.token(w, r)
	case r.URL.Path == "/session":
		if r.Header.Get("Authorization") != "Bearer "+DeviceToken {
			http.Error(w, "bad device token", http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"device":{"id":"`+DeviceID+`"}}`)
	case r.URL.Path == "/api/v3/jwt":
		q := r.URL.Query()
		if r.Header.Get("Authorization") != "Bearer "+OktaToken || r.Header.Get("x-api-key") != APIKey || q.Get("did") != DeviceID {
			http.Error(w, "not entitled", http.StatusForbidden)
			return
		}
		io.WriteString(w, Entitlement)
	case r.URL.Path == "/api/v1/teams":
		io.WriteString(w, p.Teams)
	case r.URL.Path == "/api/v1/schedule":
		p.schedule(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/game/"):
		var id int
		fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/api/v1/game/"), "%d/content", &id)
		body, ok := p.Content[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	case strings.HasPrefix(r.URL.Path, "/media/"):
		if r.Header.Get("Authorization") != p.CurrentToken() {
			http.Error(w, "bad access token", http.StatusUnauthorized)
			return
		}
		if p.StreamStatus != 0 {
			w.WriteHeader(p.StreamStatus)
		}
		io.WriteString(w, p.StreamBody)
	case r.URL.Path == "/airings":
		io.WriteString(w, p.Airings)
	default:
		http.NotFound(w, r)
	}
}

func (p *Provider) authn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Username != Username || req.Password != Password {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"errorCode":"E0000004","errorSummary":"Authentication failed"}`)
		return
	}
	n := p.Hits("/api/v1/authn")
	fmt.Fprintf(w, `{"status":"SUCCESS","sessionToken":"session-%d"}`, n)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch r.PostForm.Get("subject_token_type") {
	case "urn:bamtech:params:oauth:token-type:device":
		fmt.Fprintf(w, `{"access_token":"%s","refresh_token":"r","token_type":"bearer","expires_in":14400}`, DeviceToken)
	case "urn:bamtech:params:oauth:token-type:account":
		if r.PostForm.Get("subject_token") != Entitlement {
			http.Error(w, "bad entitlement", http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		if p.TokenFailures > 0 {
			p.TokenFailures--
			p.mu.Unlock()
			http.Error(w, "upstream failure", http.StatusInternalServerError)
			return
		}
		p.issued++
		tok := MediaToken(p.issued)
		p.mu.Unlock()
		fmt.Fprintf(w, `{"access_token":"%s","token_type":"bearer","expires_in":%d}`, tok, p.ExpiresIn)
	default:
		http.Error(w, "unknown subject_token_type", http.StatusBadRequest)
	}
}

func (p *Provider) schedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := "gamePk=" + q.Get("gamePk")
	if q.Get("gamePk") == "" {
		key = "teamId=" + q.Get("teamId") + "&date=" + q.Get("startDate")
	}
	body, ok := p.Schedules[key]
	if !ok {
		body, ok = p.Schedules["*"]
	}
	if !ok {
		io.WriteString(w, `{"dates":[]}`)
		return
	}
	io.WriteString(w, body)
}

// DefaultTeams lists a few clubs.
const DefaultTeams = `{"teams":[
 {"id":147,"name":"New York Yankees","abbreviation":"NYY","fileCode":"nyy"},
 {"id":111,"name":"Boston Red Sox","abbreviation":"BOS","fileCode":"bos"},
 {"id":146,"name":"Miami Marlins","abbreviation":"MIA","fileCode":"mia"}
]}`

// Game renders one schedule game entry.
func Game(id int, date, away, home string) string {
	team := func(code string) string {
		switch code {
		case "nyy":
			return `{"id":147,"abbreviation":"NYY","fileCode":"nyy"}`
		case "bos":
			return `{"id":111,"abbreviation":"BOS","fileCode":"bos"}`
		default:
			return `{"id":146,"abbreviation":"MIA","fileCode":"mia"}`
		}
	}
	return fmt.Sprintf(`{"gamePk":%d,"gameDate":"%s","gameType":"R",`+
		`"status":{"abstractGameState":"Final","detailedState":"Final"},`+
		`"teams":{"away":{"team":%s},"home":{"team":%s}},`+
		`"linescore":{"teams":{"away":{"runs":3},"home":{"runs":5}}}}`,
		id, date, team(away), team(home))
}

// Schedule wraps date buckets of games into a schedule response. Each bucket
// is a date followed by its games.
func Schedule(buckets ...[]string) string {
	var parts []string
	for _, b := range buckets {
		parts = append(parts, fmt.Sprintf(`{"date":"%s","games":[%s]}`, b[0], strings.Join(b[1:], ",")))
	}
	return `{"dates":[` + strings.Join(parts, ",") + `]}`
}

// EPG is one titled group of rendered feeds.
type EPG struct {
	Title string
	Items []string
}

// Content renders a content response with the groups in order.
func Content(groups ...EPG) string {
	var parts []string
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf(`{"title":"%s","items":[%s]}`, g.Title, strings.Join(g.Items, ",")))
	}
	return `{"media":{"epg":[` + strings.Join(parts, ",") + `]}}`
}

// Media renders one feed.
func Media(id, state, station, feedType string) string {
	return fmt.Sprintf(`{"mediaId":"%s","mediaState":"%s","callLetters":"%s","mediaFeedType":"%s"}`,
		id, state, station, feedType)
}
