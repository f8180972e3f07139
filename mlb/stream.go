package mlb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mhttp "mlbstreamer/http"
	"mlbstreamer/internal/logger"
)

// Stream exchanges a feed for its playable URL. It is never cached.
func (s *Session) Stream(ctx context.Context, media MediaItem) (*Stream, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	logger.GetLogger().WithField("media_id", media.MediaID).Debug("fetching stream")
	resp, err := s.client.Get(ctx, s.streamURL(media.MediaID), map[string]string{
		"Authorization":     token,
		"Accept":            "application/vnd.media-service+json; version=1",
		"x-bamsdk-version":  bamSDKVersion,
		"x-bamsdk-platform": bamSDKPlatform,
		"origin":            s.endpoints.Origin,
	})
	if err != nil {
		if mhttp.IsHTTPError(err) {
			return nil, &StreamUnavailableError{MediaID: media.MediaID, Err: err}
		}
		return nil, err
	}

	var body streamResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, &StreamUnavailableError{MediaID: media.MediaID, Reason: "malformed response", Err: err}
	}
	if len(body.Errors) > 0 {
		return nil, &StreamUnavailableError{MediaID: media.MediaID, Reason: describeErrors(body.Errors)}
	}
	if body.Stream == nil || body.Stream.Complete == "" {
		return nil, &StreamUnavailableError{MediaID: media.MediaID, Reason: "no playback url"}
	}
	return &Stream{URL: body.Stream.Complete, Raw: resp.Body}, nil
}

func describeErrors(errs []any) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		switch v := e.(type) {
		case string:
			parts = append(parts, v)
		case map[string]any:
			if code, ok := v["code"]; ok {
				parts = append(parts, fmt.Sprint(code))
			} else if desc, ok := v["description"]; ok {
				parts = append(parts, fmt.Sprint(desc))
			} else {
				parts = append(parts, fmt.Sprint(v))
			}
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, "; ")
}
