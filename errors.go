package mlbstreamer

import (
	mhttp "mlbstreamer/http"
	"mlbstreamer/internal/retry"
	"mlbstreamer/internal/storage"
	"mlbstreamer/mlb"
	"mlbstreamer/offset"
	"mlbstreamer/play"
)

// Error types exported for library users.
//
// Match them with errors.As:
//
//	var nf *mlbstreamer.GameNotFoundError
//	if errors.As(err, &nf) {
//		fmt.Printf("no game for %s\n", nf.Specifier)
//	}
//
// Pipeline failures arrive wrapped in a StageError naming the failed step;
// errors.As still finds the typed cause underneath.
type (
	// ConfigurationError: an embedded provider key could not be scraped.
	ConfigurationError = mlb.ConfigurationError
	// ProtocolError: a provider response no longer has the expected shape.
	ProtocolError = mlb.ProtocolError
	// AuthenticationError: the provider rejected the login.
	AuthenticationError = mlb.AuthenticationError
	// StageError: which authentication step failed.
	StageError = mlb.StageError
	// GameNotFoundError: the game specifier matched nothing.
	GameNotFoundError = mlb.GameNotFoundError
	// NoMatchingMediaError: no feed satisfied the request.
	NoMatchingMediaError = mlb.NoMatchingMediaError
	// StreamUnavailableError: blackout, restriction or missing stream URL.
	StreamUnavailableError = mlb.StreamUnavailableError
	// InvalidOffsetError: the start position could not be resolved.
	InvalidOffsetError = offset.InvalidOffsetError
	// LaunchError: the player could not be started or failed.
	LaunchError = play.LaunchError
	// HTTPError: a non-2xx provider response.
	HTTPError = mhttp.HTTPError
	// RateLimitError: the provider throttled a request.
	RateLimitError = mhttp.RateLimitError
	// RetryableError: retries were exhausted.
	RetryableError = retry.RetryableError
	// StorageError: reading or writing local state failed.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrStorageCorrupt indicates a state file could not be parsed.
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = storage.ErrLockTimeout
	// ErrNoPlayer indicates no media player was configured or found.
	ErrNoPlayer = play.ErrNoPlayer
)

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
