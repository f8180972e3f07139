// Package mlbstreamer browses and plays MLB.tv games from the terminal.
//
// Overview
//
// The work is split across sub-packages:
//
//   - mlb: credential store, authentication pipeline, schedule and media lookups
//   - offset: turns "start at the top of the 3rd" into a player seek offset
//   - play: builds the streamlink command and supervises the player process
//   - cache: response cache with file and Redis stores
//   - config: layered settings with named profiles
//   - http: provider transport with cookies, rate limiting and typed errors
//
// Quick Start
//
// Resolve and play a game:
//
//	store, _ := cache.NewFileStore(filepath.Join(config.Dir(), "cache.json"))
//	c := cache.New(store)
//	defer c.Close()
//
//	s, err := mlb.NewSession(ctx, mlb.Options{
//		Dir:      config.Dir(),
//		Username: "fan@example.com",
//		Password: "hunter2",
//		Cache:    c,
//		UseCache: true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close()
//
//	spec, _ := mlb.ParseSpecifier("2024-04-10/nyy/1")
//	inv, err := play.Prepare(ctx, s, play.Request{Game: spec, Offset: offset.Label("T3")},
//		play.Options{Player: "mpv"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	proc, err := (&play.Launcher{}).Start(ctx, inv)
//	if err != nil {
//		log.Fatal(err)
//	}
//	proc.Wait()
//
// Configuration
//
// Settings are read from ~/.config/mlbstreamer/config.yaml (or
// $MLBSTREAMER_CONFIG_DIR) and an optional .env beside it. Environment
// overrides:
//
//   - MLBSTREAMER_USERNAME, MLBSTREAMER_PASSWORD: provider login
//   - MLBSTREAMER_RESOLUTION: default resolution
//   - MLBSTREAMER_NO_CACHE: bypass the response cache
//
// State
//
// Session tokens and cookies are kept in mlb.session and mlb.cookies in the
// config directory. Files are rewritten whole and renamed into place, so an
// interrupted run never leaves a partial file. Two runs refreshing tokens at
// the same time are not coordinated: the last one to save wins.
//
// Dependencies
//
// Playback requires streamlink and a media player (mpv or vlc) on PATH.
package mlbstreamer
