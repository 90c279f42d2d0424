package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Credential modes accepted by [CredentialsConfig.Mode].
const (
	ModeService = "service"  // one service token shared by every conversation
	ModeUser    = "user"     // one fixed user token shared by every conversation
	ModePerUser = "per_user" // each conversation supplies its own token
)

// Owner detection strategies accepted by [CatalogConfig.OwnerDetection].
const (
	DetectBySign  = "sign"  // negative owner id means a group
	DetectByProbe = "probe" // try a user lookup, fall back to a group lookup
)

// Config represents the application configuration.
//
// Values come from the embedded defaults, an optional TOML file and finally the environment.
type Config struct {
	Bot         BotConfig         `toml:"bot"`
	Credentials CredentialsConfig `toml:"credentials"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Search      SearchConfig      `toml:"search"`
	Cache       CacheConfig       `toml:"cache"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// BotConfig contains chat transport settings.
type BotConfig struct {
	Token       string `toml:"token"`
	PollTimeout int    `toml:"poll_timeout"` // long polling timeout in seconds
	Debug       bool   `toml:"debug"`
}

// CredentialsConfig selects the credential scheme and holds the fixed tokens.
type CredentialsConfig struct {
	Mode         string `toml:"mode"`
	ServiceToken string `toml:"service_token"`
	AccessToken  string `toml:"access_token"`
	UserID       int64  `toml:"user_id"`
	AppID        string `toml:"app_id"` // used to build the per-user authorization link
	RedirectURI  string `toml:"redirect_uri"`
}

// CatalogConfig contains catalog API client settings.
type CatalogConfig struct {
	BaseURL           string   `toml:"base_url"`
	Domain            string   `toml:"domain"`
	Version           string   `toml:"version"`
	Timeout           Duration `toml:"timeout"`
	MaxAttempts       int      `toml:"max_attempts"`
	RateLimit         float64  `toml:"rate_limit"` // requests per second
	OwnerDetection    string   `toml:"owner_detection"`
	PreserveOwnerSign bool     `toml:"preserve_owner_sign"`
}

// SearchConfig contains search pipeline thresholds.
type SearchConfig struct {
	MinListens             int `toml:"min_listens"`
	MaxPlaylistsToShow     int `toml:"max_playlists_to_show"`
	TrackCandidates        int `toml:"track_candidates"`
	PlaylistPageSize       int `toml:"playlist_page_size"`
	OwnerLookupConcurrency int `toml:"owner_lookup_concurrency"`
}

// CacheConfig contains settings for the in-memory track cache.
type CacheConfig struct {
	Enabled bool     `toml:"enabled"`
	TTL     Duration `toml:"ttl"`
}

// ServerConfig contains the operator health endpoint settings. An empty Addr disables it.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Duration wraps [time.Duration] so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load builds the effective configuration: defaults, then the TOML file at path (skipped when it
// does not exist), then .env files, then the process environment.
func Load(path string, envFiles ...string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: failed to load env file: %v", ErrInvalidConfig, err)
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config values with environment variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}

	str("BOT_TOKEN", &c.Bot.Token)
	str("CREDENTIAL_MODE", &c.Credentials.Mode)
	str("VK_SERVICE_TOKEN", &c.Credentials.ServiceToken)
	str("VK_ACCESS_TOKEN", &c.Credentials.AccessToken)
	str("VK_APP_ID", &c.Credentials.AppID)
	str("VK_API_URL", &c.Catalog.BaseURL)
	str("VK_API_VERSION", &c.Catalog.Version)
	str("OWNER_DETECTION", &c.Catalog.OwnerDetection)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("HEALTH_ADDR", &c.Server.Addr)
	num("MIN_LISTENS", &c.Search.MinListens)
	num("MAX_PLAYLISTS_TO_SHOW", &c.Search.MaxPlaylistsToShow)
	num("MAX_ATTEMPTS", &c.Catalog.MaxAttempts)

	if v, ok := lookup("VK_USER_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("VK_USER_ID=%q is not an integer", v))
		} else {
			c.Credentials.UserID = id
		}
	}
	if v, ok := lookup("REQUEST_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("REQUEST_TIMEOUT=%q is not a duration", v))
		} else {
			c.Catalog.Timeout.Duration = d
		}
	}
	if v, ok := lookup("RATE_LIMIT"); ok && v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("RATE_LIMIT=%q is not a number", v))
		} else {
			c.Catalog.RateLimit = r
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Token returns the fixed catalog token for the configured mode. It is empty in per-user mode.
func (c *CredentialsConfig) Token() string {
	switch c.Mode {
	case ModeService:
		return c.ServiceToken
	case ModeUser:
		return c.AccessToken
	default:
		return ""
	}
}

// Validate reports every missing or malformed required value at once.
//
// requireBot is false for commands that never talk to the chat transport.
func (c *Config) Validate(requireBot bool) error {
	var missing []string
	if requireBot && c.Bot.Token == "" {
		missing = append(missing, "BOT_TOKEN")
	}

	switch c.Credentials.Mode {
	case ModeService:
		if c.Credentials.ServiceToken == "" {
			missing = append(missing, "VK_SERVICE_TOKEN")
		}
	case ModeUser:
		if c.Credentials.AccessToken == "" {
			missing = append(missing, "VK_ACCESS_TOKEN")
		}
	case ModePerUser:
		if c.Credentials.AppID == "" {
			missing = append(missing, "VK_APP_ID")
		}
	default:
		return fmt.Errorf("%w: unknown credential mode %q", ErrInvalidConfig, c.Credentials.Mode)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	switch {
	case c.Search.MinListens < 0:
		return fmt.Errorf("%w: min_listens must not be negative", ErrInvalidConfig)
	case c.Search.MaxPlaylistsToShow <= 0:
		return fmt.Errorf("%w: max_playlists_to_show must be positive", ErrInvalidConfig)
	case c.Catalog.MaxAttempts <= 0:
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	case c.Catalog.OwnerDetection != DetectBySign && c.Catalog.OwnerDetection != DetectByProbe:
		return fmt.Errorf("%w: unknown owner detection %q", ErrInvalidConfig, c.Catalog.OwnerDetection)
	}
	return nil
}
