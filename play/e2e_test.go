package play

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mhttp "mlbstreamer/http"
	"mlbstreamer/mlb"
	"mlbstreamer/mlb/mlbtest"
	"mlbstreamer/offset"
)

func newSession(t *testing.T, p *mlbtest.Provider) *mlb.Session {
	t.Helper()
	httpCfg := mhttp.DefaultConfig()
	httpCfg.RateLimiter.DefaultRPS = 0
	httpCfg.Timeout = 5 * time.Second

	s, err := mlb.NewSession(context.Background(), mlb.Options{
		Dir:       t.TempDir(),
		Username:  mlbtest.Username,
		Password:  mlbtest.Password,
		Endpoints: mlb.EndpointsAt(p.URL),
		HTTP:      httpCfg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPrepare_EndToEnd(t *testing.T) {
	tests := []struct {
		name      string
		away      string
		home      string
		wantMedia string
	}{
		{"team is home", "mia", "nyy", "m-home"},
		{"team is away", "nyy", "bos", "m-away"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mlbtest.New()
			defer p.Close()
			p.Schedules["teamId=147&date=2024-04-10"] = mlbtest.Schedule(
				[]string{"2024-04-10", mlbtest.Game(745001, "2024-04-10T23:05:00Z", tt.away, tt.home)},
			)
			p.Content[745001] = mlbtest.Content(mlbtest.EPG{Title: "MLBTV", Items: []string{
				mlbtest.Media("m-home", "MEDIA_ARCHIVE", "YES", "HOME"),
				mlbtest.Media("m-away", "MEDIA_ARCHIVE", "NESN", "AWAY"),
			}})
			s := newSession(t, p)

			spec, err := mlb.ParseSpecifier("2024-04-10/nyy/1")
			require.NoError(t, err)

			inv, err := Prepare(context.Background(), s, Request{
				Game:       spec,
				Offset:     offset.None(),
				Resolution: "720p",
			}, Options{Player: "mpv"})
			require.NoError(t, err)

			assert.Equal(t, 745001, inv.Game.ID)
			assert.Equal(t, tt.wantMedia, inv.Media.MediaID)
			assert.Equal(t, mlbtest.StreamURL, inv.Stream.URL)
			assert.NotContains(t, inv.Args, "--hls-start-offset")
			assert.Contains(t, inv.Args, "720p_alt")
			header, _ := flagValue(inv.Args, "--http-header")
			assert.Equal(t, "Authorization="+mlbtest.MediaToken(1), header)
		})
	}
}
