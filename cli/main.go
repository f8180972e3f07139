package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"mlbstreamer/cache"
	"mlbstreamer/config"
	"mlbstreamer/internal/logger"
	"mlbstreamer/mlb"
	"mlbstreamer/offset"
	"mlbstreamer/play"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "schedule":
		err = cmdSchedule(ctx, args)
	case "play":
		err = cmdPlay(ctx, args)
	case "login":
		err = cmdLogin(ctx, args)
	case "logout":
		err = cmdLogout(ctx, args)
	case "cache":
		err = cmdCache(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		reportError(os.Stderr, command, err)
		os.Exit(1)
	}
}

// reportError prints the one-line message users see. The full chain goes to
// the log at debug level, so it shows up with -v or in --log-file.
func reportError(w io.Writer, command string, err error) {
	logger.GetLogger().WithError(err).WithField("command", command).Debug("command failed")
	fmt.Fprintf(w, "Error: %v\n", err)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `mlbstreamer - browse and play MLB.tv games

Usage:
  mlbstreamer schedule [flags] [DATE]   List games (default today)
  mlbstreamer play [flags] GAME         Play or record a game
  mlbstreamer login [flags]             Log in and cache an access token
  mlbstreamer logout [flags]            Forget saved tokens and cookies
  mlbstreamer cache purge [flags]       Drop stale cached responses
  mlbstreamer help                      Show this help message

GAME is a numeric game id or DATE/TEAM[/N], e.g. 2024-04-10/nyy/2 for the
second game of a doubleheader.

Examples:
  mlbstreamer schedule --team nyy --days 7
  mlbstreamer play 2024-04-10/nyy
  mlbstreamer play 2024-04-10/nyy --offset T3          # top of the 3rd
  mlbstreamer play 745001 --stream away -r 540p --save # record with default name

For help on a specific command: mlbstreamer <command> -h
`)
}

// common holds the flags every command accepts.
type common struct {
	profile   string
	verbosity int
	quiet     int
	noCache   bool
	logFile   string
	logJSON   bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVarP(&c.profile, "profile", "p", config.DefaultProfile, "Configuration profile")
	fs.CountVarP(&c.verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	fs.CountVarP(&c.quiet, "quiet", "q", "Decrease log verbosity (repeatable)")
	fs.BoolVar(&c.noCache, "no-cache", false, "Bypass the response cache")
	fs.StringVar(&c.logFile, "log-file", "", "Write logs to this file instead of stderr")
	fs.BoolVar(&c.logJSON, "log-json", false, "Log in JSON format")
}

func newFlagSet(name, usage string, c *common) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mlbstreamer %s\n\nFlags:\n", usage)
		fs.PrintDefaults()
	}
	c.register(fs)
	return fs
}

// app is everything a command needs once flags are parsed.
type app struct {
	settings config.Settings
	cfgDir   string
	cache    *cache.Cache
	session  *mlb.Session
	closers  []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

func setup(ctx context.Context, c *common) (*app, error) {
	dir := config.Dir()
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	settings := cfg.Profile(c.profile)
	if c.noCache {
		noCache := true
		settings.NoCache = &noCache
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Path(), err)
	}

	logFile := c.logFile
	if logFile == "-" {
		logFile = ""
	}
	logCloser, err := logger.Setup(logger.Options{
		Verbosity: c.verbosity - c.quiet,
		File:      logFile,
		JSON:      c.logJSON,
	})
	if err != nil {
		return nil, err
	}

	a := &app{settings: settings, cfgDir: dir, closers: []io.Closer{logCloser}}

	store, err := openCacheStore(ctx, dir, settings.Cache)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache = cache.New(store)
	a.closers = append(a.closers, a.cache)

	creds := settings.Credentials(config.DefaultProvider)
	a.session, err = mlb.NewSession(ctx, mlb.Options{
		Dir:      dir,
		Username: creds.Username,
		Password: creds.Password,
		Cache:    a.cache,
		UseCache: !settings.CacheDisabled(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.session)
	return a, nil
}

func openCacheStore(ctx context.Context, dir string, cs config.CacheSettings) (cache.Store, error) {
	if cs.Backend == config.CacheBackendRedis {
		return cache.DialRedis(ctx, cs.RedisAddr, cs.RedisDB)
	}
	return cache.NewFileStore(filepath.Join(dir, "cache.json"))
}

func cmdSchedule(ctx context.Context, args []string) error {
	var c common
	fs := newFlagSet("schedule", "schedule [flags] [DATE]", &c)
	team := fs.StringP("team", "t", "", "Only games for this team code (e.g. nyy)")
	days := fs.IntP("days", "d", 1, "Number of days to list")
	gameType := fs.String("game-type", "", "Game type filter (R, S, P, ...)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(ctx, &c)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := a.settings.Location()
	if err != nil {
		return err
	}

	start := time.Now().In(loc)
	if fs.NArg() > 0 {
		if start, err = time.ParseInLocation("2006-01-02", fs.Arg(0), loc); err != nil {
			return fmt.Errorf("invalid date %q: %w", fs.Arg(0), err)
		}
	}
	if *days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}

	games, err := a.session.Schedule(ctx, mlb.ScheduleQuery{
		Start:    start,
		End:      start.AddDate(0, 0, *days-1),
		Team:     *team,
		GameType: *gameType,
	})
	if err != nil {
		return err
	}
	if len(games) == 0 {
		fmt.Println("No games found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tGAME\tMATCHUP\tSTATUS\tSCORE")
	for _, g := range games {
		t := g.Date.In(loc)
		fmt.Fprintf(w, "%s\t%s\t%d\t%s@%s\t%s\t%s\n",
			t.Format("2006-01-02"),
			t.Format("15:04"),
			g.ID,
			g.Away().Code(),
			g.Home().Code(),
			g.Status.DetailedState,
			g.Score(),
		)
	}
	return w.Flush()
}

func cmdPlay(ctx context.Context, args []string) error {
	var c common
	fs := newFlagSet("play", "play [flags] GAME", &c)
	resolution := fs.StringP("resolution", "r", "", "Stream resolution (720p, 720p@30, 540p, 504p, 360p, 288p, 224p)")
	output := fs.StringP("output", "o", "", "Record the stream to this file")
	save := fs.BoolP("save", "s", false, "Record the stream to a file with a generated name")
	offsetStr := fs.String("offset", "", "Start position: seconds, H:MM:SS, S, or T<n>/B<n> for top/bottom of an inning")
	begin := fs.BoolP("beginning", "b", false, "Start from the beginning of the broadcast (same as --offset S)")
	stream := fs.String("stream", "", "Preferred feed: home, away or national")
	station := fs.String("station", "", "Preferred station call letters")
	mediaID := fs.String("media-id", "", "Exact media id to play")
	noWait := fs.Bool("no-wait", false, "Return once the player has started")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one GAME argument")
	}
	if *output != "" && *save {
		return fmt.Errorf("--output and --save are mutually exclusive")
	}

	spec, err := mlb.ParseSpecifier(fs.Arg(0))
	if err != nil {
		return err
	}
	if *begin && *offsetStr == "" {
		*offsetStr = offset.LabelStart
	}
	req, err := offset.Parse(*offsetStr)
	if err != nil {
		return err
	}

	a, err := setup(ctx, &c)
	if err != nil {
		return err
	}
	defer a.Close()

	if *resolution == "" {
		*resolution = a.settings.Resolution
	}
	if _, ok := config.Resolutions[*resolution]; !ok {
		return fmt.Errorf("unknown resolution %q", *resolution)
	}

	player := a.settings.Player
	if player == "" {
		if player, err = play.FindPlayer(); err != nil {
			return err
		}
	}
	loc, err := a.settings.Location()
	if err != nil {
		return err
	}

	inv, err := play.Prepare(ctx, a.session, play.Request{
		Game: spec,
		Media: mlb.MediaQuery{
			PreferredStream: strings.ToLower(*stream),
			CallLetters:     *station,
			MediaID:         *mediaID,
		},
		Offset:      req,
		Resolution:  *resolution,
		Output:      *output,
		SaveDefault: *save,
	}, play.Options{
		Streamlink:     a.settings.Streamlink,
		StreamlinkArgs: a.settings.StreamlinkArgs,
		Player:         player,
		PlayerArgs:     a.settings.PlayerArgs,
		Location:       loc,
	})
	if err != nil {
		return err
	}

	if inv.Output != "" {
		fmt.Fprintf(os.Stderr, "Recording to %s\n", inv.Output)
	}
	launcher := &play.Launcher{}
	proc, err := launcher.Start(ctx, inv)
	if err != nil {
		return err
	}
	if *noWait {
		fmt.Fprintf(os.Stderr, "Player started (pid %d)\n", proc.Pid())
		return nil
	}
	return proc.Wait()
}

func cmdLogin(ctx context.Context, args []string) error {
	var c common
	fs := newFlagSet("login", "login [flags]", &c)
	force := fs.BoolP("force", "f", false, "Log in again even if a session token is saved")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(ctx, &c)
	if err != nil {
		return err
	}
	defer a.Close()

	if *force {
		if err := a.session.Login(ctx); err != nil {
			return err
		}
	}
	tok, err := a.session.TokenContext(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (token valid until %s)\n",
		a.session.Username(), tok.Expiry.Local().Format(time.DateTime))
	return nil
}

func cmdLogout(ctx context.Context, args []string) error {
	var c common
	fs := newFlagSet("logout", "logout [flags]", &c)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(ctx, &c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func cmdCache(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "purge" {
		return fmt.Errorf("usage: mlbstreamer cache purge [flags]")
	}

	var c common
	fs := newFlagSet("cache purge", "cache purge [flags]", &c)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	a, err := setup(ctx, &c)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.cache.Purge(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d cache entries.\n", n)
	return nil
}
