package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
profiles:
  default:
    providers:
      mlb:
        username: fan@example.com
        password: secret
    resolution: 720p
    player: mpv
    streamlink_args: ["--retry-open", "3"]
  tv:
    player: vlc
    resolution: 540p
    no_cache: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0600))
	return dir
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	s := cfg.Profile("")
	assert.Equal(t, "720p", s.Resolution)
	assert.Equal(t, "streamlink", s.Streamlink)
	assert.Equal(t, CacheBackendFile, s.Cache.Backend)
	assert.False(t, s.CacheDisabled())
	assert.NoError(t, s.Validate())
}

func TestProfileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	def := cfg.Profile(DefaultProfile)
	assert.Equal(t, "mpv", def.Player)
	assert.Equal(t, "720p", def.Resolution)
	assert.Equal(t, "fan@example.com", def.Credentials("mlb").Username)
	assert.Equal(t, []string{"--retry-open", "3"}, def.StreamlinkArgs)

	tv := cfg.Profile("tv")
	assert.Equal(t, "vlc", tv.Player)
	assert.Equal(t, "540p", tv.Resolution)
	assert.True(t, tv.CacheDisabled())
	assert.Equal(t, "secret", tv.Credentials("mlb").Password, "credentials come from the default profile")
	assert.Equal(t, []string{"--retry-open", "3"}, tv.StreamlinkArgs)

	unknown := cfg.Profile("nope")
	assert.Equal(t, def.Player, unknown.Player)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MLBSTREAMER_USERNAME", "env@example.com")
	t.Setenv("MLBSTREAMER_NO_CACHE", "true")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	s := cfg.Profile("")
	assert.Equal(t, "env@example.com", s.Credentials("mlb").Username)
	assert.Equal(t, "secret", s.Credentials("mlb").Password)
	assert.True(t, s.CacheDisabled())
}

func TestDotEnvLoaded(t *testing.T) {
	dir := writeConfig(t, sampleConfig)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MLBSTREAMER_PASSWORD=from-dotenv\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("MLBSTREAMER_PASSWORD") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Profile("").Credentials("mlb").Password)
}

func TestMergeDoesNotAliasBase(t *testing.T) {
	base := Defaults()
	base.Providers["mlb"] = Credentials{Username: "a"}

	out := Merge(base, Settings{Providers: map[string]Credentials{"mlb": {Password: "p"}}})
	assert.Equal(t, Credentials{Username: "a", Password: "p"}, out.Providers["mlb"])
	assert.Equal(t, Credentials{Username: "a"}, base.Providers["mlb"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(s *Settings) {}, false},
		{"unknown resolution", func(s *Settings) { s.Resolution = "4k" }, true},
		{"empty streamlink", func(s *Settings) { s.Streamlink = "" }, true},
		{"redis without addr", func(s *Settings) { s.Cache.Backend = CacheBackendRedis }, true},
		{"redis with addr", func(s *Settings) {
			s.Cache.Backend = CacheBackendRedis
			s.Cache.RedisAddr = "localhost:6379"
		}, false},
		{"unknown backend", func(s *Settings) { s.Cache.Backend = "sqlite" }, true},
		{"bad zone", func(s *Settings) { s.TimeZone = "Mars/Olympus" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
