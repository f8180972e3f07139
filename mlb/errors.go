package mlb

import (
	"errors"
	"fmt"
	"strings"

	mhttp "mlbstreamer/http"
)

// Stage names one step of the authentication pipeline.
type Stage string

const (
	StageKeys          Stage = "key discovery"
	StageLogin         Stage = "login"
	StageAuthorize     Stage = "authorize"
	StageDevice        Stage = "device registration"
	StageSession       Stage = "device session"
	StageEntitlement   Stage = "entitlement"
	StageTokenExchange Stage = "token exchange"
)

// StageError records which pipeline step failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ConfigurationError means a key could not be scraped from a provider page,
// usually because the page format changed.
type ConfigurationError struct {
	Key    string
	Source string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("could not find %s in %s; the provider page format may have changed", e.Key, e.Source)
}

// ProtocolError means a provider response no longer has the expected shape.
type ProtocolError struct {
	Stage  Stage
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected %s response: %s", e.Stage, e.Detail)
}

// AuthenticationError means the provider rejected the login.
type AuthenticationError struct {
	Username   string
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("login failed for %q", e.Username)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// GameNotFoundError means a specifier resolved to no game.
type GameNotFoundError struct {
	Specifier Specifier
	Reason    string
}

func (e *GameNotFoundError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("game not found: %s", e.Specifier)
	}
	return fmt.Sprintf("game not found: %s: %s", e.Specifier, e.Reason)
}

// NoMatchingMediaError means no feed satisfied the request and no fallback
// feed exists.
type NoMatchingMediaError struct {
	GameID int
	Query  MediaQuery
}

func (e *NoMatchingMediaError) Error() string {
	var filters []string
	if e.Query.PreferredStream != "" {
		filters = append(filters, "stream="+e.Query.PreferredStream)
	}
	if e.Query.CallLetters != "" {
		filters = append(filters, "station="+e.Query.CallLetters)
	}
	if e.Query.MediaID != "" {
		filters = append(filters, "media="+e.Query.MediaID)
	}
	if len(filters) == 0 {
		return fmt.Sprintf("no media available for game %d", e.GameID)
	}
	return fmt.Sprintf("no media for game %d matching %s", e.GameID, strings.Join(filters, ", "))
}

// StreamUnavailableError means the provider would not hand out a playable
// stream, typically a blackout or regional restriction.
type StreamUnavailableError struct {
	MediaID string
	Reason  string
	Err     error
}

func (e *StreamUnavailableError) Error() string {
	msg := fmt.Sprintf("stream unavailable for media %s", e.MediaID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StreamUnavailableError) Unwrap() error { return e.Err }

// isTokenExchangeHTTPError reports whether err is an HTTP failure of the
// final token exchange, the one step that is retried after a fresh login.
func isTokenExchangeHTTPError(err error) bool {
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageTokenExchange {
		return false
	}
	return mhttp.IsHTTPError(se.Err)
}
