// Package config manages layered application settings.
//
// Settings live in a YAML file organized by profile:
//
//	profiles:
//	  default:
//	    providers:
//	      mlb:
//	        username: fan@example.com
//	        password: hunter2
//	    resolution: 720p
//	    player: mpv
//	  tv:
//	    player: vlc
//	    resolution: 540p
//
// A named profile only overrides the fields it sets; everything else comes
// from the default profile, and from built-in defaults below that.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MLBSTREAMER"
	// DefaultProfile is the profile every other profile falls back to.
	DefaultProfile = "default"
	// DefaultProvider names the only built-in provider.
	DefaultProvider = "mlb"

	configName = "config"
)

// Cache backends.
const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

// Resolutions maps user-facing resolution names to provider variant names.
var Resolutions = map[string]string{
	"720p":    "720p_alt",
	"720p@30": "720p",
	"540p":    "540p",
	"504p":    "504p",
	"360p":    "360p",
	"288p":    "288p",
	"224p":    "224p",
}

// Credentials holds one provider's login.
type Credentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheSettings selects the response cache backend.
type CacheSettings struct {
	Backend   string `mapstructure:"backend"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
}

// Settings is one resolved profile.
type Settings struct {
	Providers      map[string]Credentials `mapstructure:"providers"`
	Resolution     string                 `mapstructure:"resolution"`
	Player         string                 `mapstructure:"player"`
	PlayerArgs     string                 `mapstructure:"player_args"`
	Streamlink     string                 `mapstructure:"streamlink"`
	StreamlinkArgs []string               `mapstructure:"streamlink_args"`
	NoCache        *bool                  `mapstructure:"no_cache"`
	TimeZone       string                 `mapstructure:"time_zone"`
	Cache          CacheSettings          `mapstructure:"cache"`
}

// Config holds every profile read from disk.
type Config struct {
	// Dir is the directory holding config, session and cache files.
	Dir      string              `mapstructure:"-"`
	Profiles map[string]Settings `mapstructure:"profiles"`

	v *viper.Viper
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	noCache := false
	return Settings{
		Providers:  map[string]Credentials{},
		Resolution: "720p",
		Streamlink: "streamlink",
		NoCache:    &noCache,
		TimeZone:   "America/New_York",
		Cache:      CacheSettings{Backend: CacheBackendFile},
	}
}

// Dir returns the configuration directory: $MLBSTREAMER_CONFIG_DIR, or
// ~/.config/mlbstreamer.
func Dir() string {
	if d := os.Getenv(EnvPrefix + "_CONFIG_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "mlbstreamer")
}

// Load reads dir/config.yaml and dir/.env. Both are optional.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{Dir: dir, v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Settings{}
	}
	return cfg, nil
}

// Path returns the config file location.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, configName+".yaml")
}

// Profile resolves the named profile over the default profile over the
// built-in defaults, then applies environment overrides. An unknown or empty
// name resolves to the default profile.
func (c *Config) Profile(name string) Settings {
	s := Defaults()
	s = Merge(s, c.Profiles[DefaultProfile])
	if name != "" && name != DefaultProfile {
		s = Merge(s, c.Profiles[name])
	}
	if c.v != nil {
		s = c.applyEnv(s)
	}
	return s
}

// Merge returns base with every non-zero field of over applied.
func Merge(base, over Settings) Settings {
	out := base
	out.Providers = make(map[string]Credentials, len(base.Providers))
	for k, v := range base.Providers {
		out.Providers[k] = v
	}
	for k, v := range over.Providers {
		cur := out.Providers[k]
		if v.Username != "" {
			cur.Username = v.Username
		}
		if v.Password != "" {
			cur.Password = v.Password
		}
		out.Providers[k] = cur
	}
	if over.Resolution != "" {
		out.Resolution = over.Resolution
	}
	if over.Player != "" {
		out.Player = over.Player
	}
	if over.PlayerArgs != "" {
		out.PlayerArgs = over.PlayerArgs
	}
	if over.Streamlink != "" {
		out.Streamlink = over.Streamlink
	}
	if len(over.StreamlinkArgs) > 0 {
		out.StreamlinkArgs = append([]string(nil), over.StreamlinkArgs...)
	}
	if over.NoCache != nil {
		v := *over.NoCache
		out.NoCache = &v
	}
	if over.TimeZone != "" {
		out.TimeZone = over.TimeZone
	}
	if over.Cache.Backend != "" {
		out.Cache.Backend = over.Cache.Backend
	}
	if over.Cache.RedisAddr != "" {
		out.Cache.RedisAddr = over.Cache.RedisAddr
	}
	if over.Cache.RedisDB != 0 {
		out.Cache.RedisDB = over.Cache.RedisDB
	}
	return out
}

func (c *Config) applyEnv(s Settings) Settings {
	cred := s.Providers[DefaultProvider]
	if u := c.v.GetString("username"); u != "" {
		cred.Username = u
	}
	if p := c.v.GetString("password"); p != "" {
		cred.Password = p
	}
	s.Providers[DefaultProvider] = cred

	if c.v.IsSet("no_cache") {
		noCache := c.v.GetBool("no_cache")
		s.NoCache = &noCache
	}
	if r := c.v.GetString("resolution"); r != "" {
		s.Resolution = r
	}
	return s
}

// Credentials returns the login for provider, if any.
func (s Settings) Credentials(provider string) Credentials {
	return s.Providers[provider]
}

// CacheDisabled reports whether the no_cache override is on.
func (s Settings) CacheDisabled() bool {
	return s.NoCache != nil && *s.NoCache
}

// Location loads the configured time zone.
func (s Settings) Location() (*time.Location, error) {
	return time.LoadLocation(s.TimeZone)
}

// Validate checks settings validity.
func (s Settings) Validate() error {
	if s.Streamlink == "" {
		return fmt.Errorf("streamlink path must be set")
	}
	if _, ok := Resolutions[s.Resolution]; !ok {
		return fmt.Errorf("unknown resolution %q", s.Resolution)
	}
	switch s.Cache.Backend {
	case CacheBackendFile:
	case CacheBackendRedis:
		if s.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", s.Cache.Backend)
	}
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("time_zone: %w", err)
	}
	return nil
}
