// Package config loads the chathub TOML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/papercomputeco/chathub/pkg/chathub"
	"github.com/papercomputeco/chathub/pkg/session"
	"github.com/papercomputeco/chathub/pkg/sydney"
)

// EnvConfigPath names the environment variable that points at the config file.
const EnvConfigPath = "CHATHUB_CONFIG"

const (
	DefaultCreateURL = "https://edgeservices.bing.com/edgesvc/turing/conversation/create"
	DefaultHubURL    = "wss://sydney.bing.com/sydney/ChatHub"
	DefaultListen    = ":8080"
)

type Config struct {
	ChatHub ChatHubConfig `toml:"chathub"`
	Session SessionConfig `toml:"session"`
	Store   StoreConfig   `toml:"store"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

type ChatHubConfig struct {
	Cookie       string        `toml:"cookie"`
	CreateURL    string        `toml:"create_url"`
	HubURL       string        `toml:"hub_url"`
	ForwardedFor string        `toml:"forwarded_for"`
	Style        string        `toml:"style"`
	SystemPrompt string        `toml:"system_prompt"`
	Connect      ConnectConfig `toml:"connect"`

	TurnTimeout    time.Duration `toml:"-"`
	TurnTimeoutRaw string        `toml:"turn_timeout"`
}

type ConnectConfig struct {
	MaxAttempts int `toml:"max_attempts"`

	InitialBackoff time.Duration `toml:"-"`
	MaxBackoff     time.Duration `toml:"-"`

	InitialBackoffRaw string `toml:"initial_backoff"`
	MaxBackoffRaw     string `toml:"max_backoff"`
}

type SessionConfig struct {
	Lifetime time.Duration `toml:"-"`
	Margin   time.Duration `toml:"-"`

	LifetimeRaw string `toml:"lifetime"`
	MarginRaw   string `toml:"margin"`
}

type StoreConfig struct {
	Driver    string `toml:"driver"`
	Path      string `toml:"path"`
	RedisURL  string `toml:"redis_url"`
	KeyPrefix string `toml:"key_prefix"`

	PruneInterval    time.Duration `toml:"-"`
	PruneIntervalRaw string        `toml:"prune_interval"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ChatHub: ChatHubConfig{
			CreateURL: DefaultCreateURL,
			HubURL:    DefaultHubURL,
			Style:     string(sydney.DefaultStyle),
		},
		Session: SessionConfig{
			Lifetime: session.DefaultLifetime,
			Margin:   session.DefaultMargin,
		},
		Store: StoreConfig{
			Driver:        session.DriverMemory,
			KeyPrefix:     "chathub:",
			PruneInterval: session.DefaultPruneInterval,
		},
		Server: ServerConfig{
			Listen: DefaultListen,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ResolvePath picks the config file: the explicit flag value, then
// $CHATHUB_CONFIG, then $XDG_CONFIG_HOME/chathub/config.toml.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "chathub", "config.toml")
}

// Load reads the config at path on top of the defaults. A missing file is not
// an error. A .env file in the working directory is loaded first so ${VAR}
// references can be satisfied from it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := decode(string(data), cfg); err != nil {
				return nil, err
			}
		}
	}

	if cfg.ChatHub.Cookie == "" {
		cfg.ChatHub.Cookie = os.Getenv("CHATHUB_COOKIE")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Parse decodes TOML content on top of the defaults without touching the
// filesystem or validating.
func Parse(content string) (*Config, error) {
	cfg := Default()
	if err := decode(content, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(content string, cfg *Config) error {
	if _, err := toml.Decode(expandEnvVars(content), cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return parseDurations(cfg)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"chathub.turn_timeout", cfg.ChatHub.TurnTimeoutRaw, &cfg.ChatHub.TurnTimeout},
		{"chathub.connect.initial_backoff", cfg.ChatHub.Connect.InitialBackoffRaw, &cfg.ChatHub.Connect.InitialBackoff},
		{"chathub.connect.max_backoff", cfg.ChatHub.Connect.MaxBackoffRaw, &cfg.ChatHub.Connect.MaxBackoff},
		{"session.lifetime", cfg.Session.LifetimeRaw, &cfg.Session.Lifetime},
		{"session.margin", cfg.Session.MarginRaw, &cfg.Session.Margin},
		{"store.prune_interval", cfg.Store.PruneIntervalRaw, &cfg.Store.PruneInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if err := validateURL("chathub.create_url", c.ChatHub.CreateURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("chathub.hub_url", c.ChatHub.HubURL, "ws", "wss"); err != nil {
		return err
	}

	if _, ok := sydney.LookupStyle(c.ChatHub.Style); c.ChatHub.Style != "" && !ok {
		return fmt.Errorf("chathub.style %q is not one of %v", c.ChatHub.Style, sydney.Styles())
	}
	if c.ChatHub.Connect.MaxAttempts < 0 {
		return fmt.Errorf("chathub.connect.max_attempts must not be negative")
	}
	if c.Session.Lifetime <= 0 {
		return fmt.Errorf("session.lifetime must be positive")
	}
	if c.Session.Margin <= 0 || c.Session.Margin >= c.Session.Lifetime {
		return fmt.Errorf("session.margin must be positive and below session.lifetime")
	}

	if c.Store.PruneInterval <= 0 {
		return fmt.Errorf("store.prune_interval must be positive")
	}

	switch c.Store.Driver {
	case "", session.DriverMemory:
	case session.DriverSQLite, session.DriverBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	case session.DriverRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	return nil
}

func validateURL(name, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use one of the schemes %v", name, schemes)
}

// ClientConfig maps the [chathub] section onto the protocol client.
func (c *Config) ClientConfig() chathub.Config {
	return chathub.Config{
		CreateURL:      c.ChatHub.CreateURL,
		HubURL:         c.ChatHub.HubURL,
		Cookie:         c.ChatHub.Cookie,
		ForwardedFor:   c.ChatHub.ForwardedFor,
		TurnTimeout:    c.ChatHub.TurnTimeout,
		MaxAttempts:    c.ChatHub.Connect.MaxAttempts,
		InitialBackoff: c.ChatHub.Connect.InitialBackoff,
		MaxBackoff:     c.ChatHub.Connect.MaxBackoff,
	}
}

// ManagerConfig maps the [session] section and turn defaults onto the manager.
func (c *Config) ManagerConfig() session.Config {
	return session.Config{
		Lifetime:     c.Session.Lifetime,
		Margin:       c.Session.Margin,
		Style:        sydney.ParseStyle(c.ChatHub.Style),
		SystemPrompt: c.ChatHub.SystemPrompt,
	}
}

// SessionStoreConfig maps the [store] section onto the store factory.
func (c *Config) SessionStoreConfig() session.StoreConfig {
	return session.StoreConfig{
		Driver:    c.Store.Driver,
		Path:      c.Store.Path,
		RedisURL:  c.Store.RedisURL,
		KeyPrefix: c.Store.KeyPrefix,
	}
}
