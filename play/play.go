// Package play resolves a game down to a playable stream and launches
// streamlink on it.
//
// Prepare does every network lookup up front, so a request that cannot be
// played fails before any process is started.
package play

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"mlbstreamer/config"
	"mlbstreamer/internal/logger"
	"mlbstreamer/mlb"
	"mlbstreamer/offset"
)

const defaultStreamlink = "streamlink"

// Resolver is the subset of *mlb.Session that Prepare needs.
type Resolver interface {
	ResolveGame(ctx context.Context, spec mlb.Specifier) (*mlb.Game, error)
	SelectMedia(ctx context.Context, gameID int, q mlb.MediaQuery) (mlb.MediaItem, error)
	Stream(ctx context.Context, media mlb.MediaItem) (*mlb.Stream, error)
	MediaTimestamps(ctx context.Context, gameID int, mediaID string) (*offset.TimestampMap, error)
	Headers(ctx context.Context) (map[string]string, error)
	Cookies() []*http.Cookie
}

var _ Resolver = (*mlb.Session)(nil)

// Request describes what to play.
type Request struct {
	Game   mlb.Specifier
	Media  mlb.MediaQuery
	Offset offset.Request
	// Resolution is a user-facing name such as "720p".
	Resolution string
	// Output records to this file when set.
	Output string
	// SaveDefault records to a file named by OutputFilename.
	SaveDefault bool
}

// Options carries the player settings.
type Options struct {
	Streamlink     string
	StreamlinkArgs []string
	Player         string
	PlayerArgs     string
	// Location is used for output file names. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

// Invocation is a fully resolved streamlink command.
type Invocation struct {
	Path   string
	Args   []string
	Game   *mlb.Game
	Media  mlb.MediaItem
	Stream *mlb.Stream
	Offset offset.Result
	Output string
}

// String renders the command with header values hidden.
func (inv *Invocation) String() string {
	parts := []string{inv.Path}
	redact := false
	for _, a := range inv.Args {
		if redact {
			if i := strings.IndexByte(a, '='); i >= 0 {
				a = a[:i+1] + "<redacted>"
			}
			redact = false
		}
		if a == "--http-header" || a == "--http-cookie" {
			redact = true
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Prepare resolves req into an Invocation.
func Prepare(ctx context.Context, r Resolver, req Request, opts Options) (*Invocation, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if req.Resolution == "" {
		req.Resolution = config.Defaults().Resolution
	}

	game, err := r.ResolveGame(ctx, req.Game)
	if err != nil {
		return nil, err
	}
	entry := logger.GetLogger().WithField("game_id", game.ID)

	q := req.Media
	if q.PreferredStream == "" && q.CallLetters == "" && q.MediaID == "" {
		q.PreferredStream = mlb.PreferredStream(req.Game, game)
	}
	media, err := r.SelectMedia(ctx, game.ID, q)
	if err != nil {
		return nil, err
	}
	entry = entry.WithFields(log.Fields{"media_id": media.MediaID, "live": media.Live()})

	var ts *offset.TimestampMap
	if req.Offset.Kind == offset.KindLabel || (media.Live() && !req.Offset.IsNone()) {
		if ts, err = r.MediaTimestamps(ctx, game.ID, media.MediaID); err != nil {
			return nil, err
		}
	}
	res, err := offset.Calculate(req.Offset, media.Live(), ts, opts.Now())
	if err != nil {
		return nil, err
	}
	if flag, ok := res.Flag(); ok {
		entry.WithField("offset", flag).Info("starting at time offset")
	}

	stream, err := r.Stream(ctx, media)
	if err != nil {
		return nil, err
	}
	headers, err := r.Headers(ctx)
	if err != nil {
		return nil, err
	}

	output := req.Output
	if req.SaveDefault {
		output = OutputFilename(game, media, res, req.Resolution, opts.Location)
	}

	inv := &Invocation{
		Path: opts.Streamlink,
		Args: BuildArgs(Args{
			Player:         opts.Player,
			PlayerArgs:     opts.PlayerArgs,
			Headers:        headers,
			Cookies:        r.Cookies(),
			StreamlinkArgs: opts.StreamlinkArgs,
			URL:            stream.URL,
			Resolution:     req.Resolution,
			Offset:         res,
			Output:         output,
		}),
		Game:   game,
		Media:  media,
		Stream: stream,
		Offset: res,
		Output: output,
	}
	if inv.Path == "" {
		inv.Path = defaultStreamlink
	}
	entry.WithField("command", inv.String()).Debug("prepared player command")
	return inv, nil
}

// Args are the inputs to BuildArgs.
type Args struct {
	Player         string
	PlayerArgs     string
	Headers        map[string]string
	Cookies        []*http.Cookie
	StreamlinkArgs []string
	URL            string
	Resolution     string
	Offset         offset.Result
	Output         string
}

// BuildArgs assembles the streamlink argument list.
func BuildArgs(a Args) []string {
	var args []string
	if a.Player != "" {
		args = append(args, "--player", strings.TrimSpace(a.Player+" "+a.PlayerArgs))
	}

	keys := make([]string, 0, len(a.Headers))
	for k := range a.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--http-header", k+"="+a.Headers[k])
	}
	for _, c := range a.Cookies {
		args = append(args, "--http-cookie", c.Name+"="+c.Value)
	}

	args = append(args, a.StreamlinkArgs...)
	args = append(args, a.URL, ResolutionVariant(a.Resolution))

	if flag, ok := a.Offset.Flag(); ok {
		args = append(args, "--hls-start-offset", flag)
	}
	if a.Output != "" {
		args = append(args, "-o", a.Output)
	}
	return args
}

// ResolutionVariant maps a user-facing resolution to the stream variant
// name. Unknown names pass through unchanged.
func ResolutionVariant(name string) string {
	if v, ok := config.Resolutions[name]; ok {
		return v
	}
	return name
}

// OutputFilename names a recording after the matchup, start time and
// station, for example mlb.20240410.mia@nyy.1305.yes.ts. The start time is
// in loc and is followed by the offset seconds when one was requested. When
// any part is missing it falls back to mlb.<game id>.<resolution>.ts.
func OutputFilename(game *mlb.Game, media mlb.MediaItem, res offset.Result, resolution string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	if game == nil {
		return fmt.Sprintf("%s.unknown.%s.ts", mlb.Provider, resolution)
	}

	away, home := game.Away().Code(), game.Home().Code()
	if game.Date.IsZero() || away == "" || home == "" || media.CallLetters == "" {
		return fmt.Sprintf("%s.%d.%s.ts", mlb.Provider, game.ID, resolution)
	}

	start := game.Date.In(loc)
	clock := start.Format("1504")
	if secs, ok := res.Seconds(); ok {
		clock = fmt.Sprintf("%s_%d", clock, secs)
	}
	return fmt.Sprintf("%s.%s.%s@%s.%s.%s.ts",
		mlb.Provider, start.Format("20060102"), away, home, clock, strings.ToLower(media.CallLetters))
}
