package mlb

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlbstreamer/mlb/mlbtest"
)

func TestStream(t *testing.T) {
	p := newProvider(t)
	s, _ := newTestSession(t, p)

	st, err := s.Stream(context.Background(), MediaItem{MediaID: "m-home"})
	require.NoError(t, err)
	assert.Equal(t, mlbtest.StreamURL, st.URL)
	assert.NotEmpty(t, st.Raw)
}

func TestStream_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"errors list", `{"errors":[{"code":"blackout"}]}`, 0, "blackout"},
		{"no url", `{"stream":{}}`, 0, "no playback url"},
		{"forbidden", `{}`, http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t)
			p.StreamBody = tt.body
			p.StreamStatus = tt.status
			s, _ := newTestSession(t, p)

			_, err := s.Stream(context.Background(), MediaItem{MediaID: "m1"})
			var su *StreamUnavailableError
			require.ErrorAs(t, err, &su)
			assert.Equal(t, "m1", su.MediaID)
			assert.Equal(t, tt.reason, su.Reason)
		})
	}
}

func TestStream_NeverCached(t *testing.T) {
	p := newProvider(t)
	s, _ := newTestSession(t, p, withCache)
	ctx := context.Background()

	for range 2 {
		_, err := s.Stream(ctx, MediaItem{MediaID: "m1"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.Hits("/media/m1/scenarios/browser~csai"))
}

func TestDescribeErrors(t *testing.T) {
	got := describeErrors([]any{"plain", map[string]any{"description": "geo"}, 7.0})
	assert.Equal(t, "plain; geo; 7", got)
}
