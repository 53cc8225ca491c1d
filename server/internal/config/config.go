package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/interruptmeter/interruptmeter/server/internal/meter"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort          = 8084
	DefaultBroadcastInterval = 30 * time.Second
	DefaultTimezone          = "UTC"
	DefaultStorageBackend    = "sqlite"
	DefaultStoragePath       = "meter.db"
	DefaultAlertCooldown     = 15 * time.Minute
)

// Seed dates written into an empty store on first start.
const (
	DefaultCurrentIteration = "2012-11-12"
	DefaultLastIteration    = "2012-10-26"
	DefaultLastOutage       = "2012-11-24"
	DefaultLastHotfix       = "2012-11-23"
)

// Config is the parsed config.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`

	// Categories maps each chart category to the tracker states that feed
	// it. Omitted means the built-in workflow table.
	Categories map[string][]string `yaml:"categories"`

	Seed SeedConfig `yaml:"seed"`

	Alerts AlertsConfig `yaml:"alerts"`

	states *meter.StateMap
	loc    *time.Location
	seed   seedDates
}

// ServerConfig holds listener and push settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// Auth guards the mutating routes.
	Auth AuthConfig `yaml:"auth"`

	// BroadcastInterval is how often the dashboard is pushed to WebSocket
	// clients when nothing changed.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Timezone decides which calendar date counts as "today" for streaks.
	Timezone string `yaml:"timezone"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StorageConfig selects the KV backend.
type StorageConfig struct {
	// Backend is one of: sqlite | memory.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// AlertsConfig controls streak alerts and where they are delivered.
type AlertsConfig struct {
	// Cooldown is the minimum time between two firings of the same alert.
	Cooldown time.Duration `yaml:"cooldown"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// SeedConfig holds the dates written into an empty store. All values are
// YYYY-MM-DD.
type SeedConfig struct {
	CurrentIteration string `yaml:"current_iteration"`
	LastIteration    string `yaml:"last_iteration"`
	LastOutage       string `yaml:"last_outage"`
	LastHotfix       string `yaml:"last_hotfix"`
}

type seedDates struct {
	current, previous time.Time
	anchors           map[streak.Track]time.Time
}

// StateMap returns the validated state table.
func (c *Config) StateMap() *meter.StateMap { return c.states }

// Location returns the loaded server timezone.
func (c *Config) Location() *time.Location { return c.loc }

// SeedCycles returns the parsed seed cycle starts.
func (c *Config) SeedCycles() (current, previous time.Time) {
	return c.seed.current, c.seed.previous
}

// SeedAnchors returns the parsed seed anchor per track.
func (c *Config) SeedAnchors() map[streak.Track]time.Time {
	out := make(map[streak.Track]time.Time, len(c.seed.anchors))
	for k, v := range c.seed.anchors {
		out[k] = v
	}
	return out
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := defaults()
	if err := validate(cfg); err != nil {
		panic(err) // defaults are constants
	}
	return cfg
}

// LoadEnv loads KEY=value pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: load env %q: %w", path, err)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			BroadcastInterval: DefaultBroadcastInterval,
			Timezone:          DefaultTimezone,
		},
		Storage: StorageConfig{
			Backend: DefaultStorageBackend,
			Path:    DefaultStoragePath,
		},
		Seed: SeedConfig{
			CurrentIteration: DefaultCurrentIteration,
			LastIteration:    DefaultLastIteration,
			LastOutage:       DefaultLastOutage,
			LastHotfix:       DefaultLastHotfix,
		},
		Alerts: AlertsConfig{
			Cooldown: DefaultAlertCooldown,
		},
	}
}

func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey":
		if s.Auth.KeyEnv == "" {
			return fmt.Errorf("server.auth.key_env is required when mode is apikey")
		}
	case "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("server.timezone: %w", err)
	}
	cfg.loc = loc

	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend %q unknown: want sqlite|memory", cfg.Storage.Backend)
	}

	if cfg.Categories == nil {
		cfg.states = meter.DefaultStateMap()
	} else {
		table := make(map[meter.Category][]string, len(cfg.Categories))
		for c, states := range cfg.Categories {
			table[meter.Category(c)] = states
		}
		m, err := meter.NewStateMap(table)
		if err != nil {
			return fmt.Errorf("categories: %w", err)
		}
		cfg.states = m
	}

	if cfg.Alerts.Cooldown < 0 {
		return fmt.Errorf("alerts.cooldown must not be negative")
	}
	for i, wh := range cfg.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d].type %q unknown: want slack|teams|http", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("alerts.webhooks[%d].url_env is required", i)
		}
	}

	return validateSeed(cfg)
}

func validateSeed(cfg *Config) error {
	var outage, hotfix time.Time
	fields := []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"seed.current_iteration", cfg.Seed.CurrentIteration, &cfg.seed.current},
		{"seed.last_iteration", cfg.Seed.LastIteration, &cfg.seed.previous},
		{"seed.last_outage", cfg.Seed.LastOutage, &outage},
		{"seed.last_hotfix", cfg.Seed.LastHotfix, &hotfix},
	}
	for _, f := range fields {
		d, err := time.Parse(meter.DateLayout, f.value)
		if err != nil {
			return fmt.Errorf("%s %q: want YYYY-MM-DD", f.name, f.value)
		}
		*f.dst = d
	}
	if cfg.seed.previous.After(cfg.seed.current) {
		return fmt.Errorf("seed.last_iteration %s is after seed.current_iteration %s",
			cfg.Seed.LastIteration, cfg.Seed.CurrentIteration)
	}
	cfg.seed.anchors = map[streak.Track]time.Time{
		streak.Outage: outage,
		streak.Hotfix: hotfix,
	}
	return nil
}
