package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment variable the client reads
const EnvPrefix = "CLASSROOM_"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as client-wide settings coordinator
// Clean separation between configuration management and state reconciliation
type Config struct {
	API       *APIConfig      `json:"api" envPrefix:"API_"`
	Auth      *AuthConfig     `json:"auth" envPrefix:"AUTH_"`
	Polling   *PollingConfig  `json:"polling" envPrefix:"POLLING_"`
	Join      *JoinConfig     `json:"join" envPrefix:"JOIN_"`
	Mutations *MutationConfig `json:"mutations" envPrefix:"MUTATIONS_"`
	Store     *StoreConfig    `json:"store" envPrefix:"STORE_"`
	Log       *LogConfig      `json:"log" envPrefix:"LOG_"`
}

// APIConfig points the client at the backend
type APIConfig struct {
	BaseURL   string        `json:"base_url" env:"BASE_URL"`
	Timeout   time.Duration `json:"timeout" env:"TIMEOUT"`
	UserAgent string        `json:"user_agent" env:"USER_AGENT"`
}

// AuthConfig carries a pre-issued lecturer token, if any
type AuthConfig struct {
	AccessToken string `json:"access_token" env:"ACCESS_TOKEN"`
}

// FUNCTIONAL DISCOVERY: Roster refreshes every 10s, module and timer state every 5s
type PollingConfig struct {
	RosterInterval  time.Duration `json:"roster_interval" env:"ROSTER_INTERVAL"`
	ModuleInterval  time.Duration `json:"module_interval" env:"MODULE_INTERVAL"`
	TimerInterval   time.Duration `json:"timer_interval" env:"TIMER_INTERVAL"`
	SessionInterval time.Duration `json:"session_interval" env:"SESSION_INTERVAL"`
	Jitter          time.Duration `json:"jitter" env:"JITTER"`
}

// JoinConfig tunes the participant side
type JoinConfig struct {
	HeartbeatInterval time.Duration `json:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	LookupCacheSize   int           `json:"lookup_cache_size" env:"LOOKUP_CACHE_SIZE"`
	LookupCacheTTL    time.Duration `json:"lookup_cache_ttl" env:"LOOKUP_CACHE_TTL"`
}

// MutationConfig bounds optimistic mutations
type MutationConfig struct {
	Timeout time.Duration `json:"timeout" env:"TIMEOUT"`
}

// StoreConfig locates the local credential database
type StoreConfig struct {
	Path    string        `json:"path" env:"PATH"`
	Timeout time.Duration `json:"timeout" env:"TIMEOUT"`
}

// LogConfig selects level and output format
type LogConfig struct {
	Level  string `json:"level" env:"LEVEL"`
	Format string `json:"format" env:"FORMAT"`
}

// FUNCTIONAL DISCOVERY: Defaults match the browser client's polling cadence
func DefaultConfig() *Config {
	return &Config{
		API: &APIConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   15 * time.Second,
			UserAgent: "classroom-cli/1.0",
		},
		Auth: &AuthConfig{},
		Polling: &PollingConfig{
			RosterInterval:  10 * time.Second,
			ModuleInterval:  5 * time.Second,
			TimerInterval:   5 * time.Second,
			SessionInterval: 10 * time.Second,
			Jitter:          500 * time.Millisecond,
		},
		Join: &JoinConfig{
			HeartbeatInterval: 30 * time.Second,
			LookupCacheSize:   128,
			LookupCacheTTL:    time.Minute,
		},
		Mutations: &MutationConfig{
			Timeout: 30 * time.Second,
		},
		Store: &StoreConfig{
			Path:    defaultStorePath(),
			Timeout: 10 * time.Second,
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./classroom.db"
	}
	return filepath.Join(dir, "classroom", "credentials.db")
}

// Validate rejects configurations the client cannot run with
func (c *Config) Validate() error {
	if c.API == nil {
		return fmt.Errorf("API configuration is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL cannot be empty")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("API base URL must start with http:// or https://")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}

	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}

	if c.Polling == nil {
		return fmt.Errorf("polling configuration is required")
	}
	if c.Polling.RosterInterval <= 0 {
		return fmt.Errorf("roster poll interval must be positive")
	}
	if c.Polling.ModuleInterval <= 0 {
		return fmt.Errorf("module poll interval must be positive")
	}
	if c.Polling.TimerInterval <= 0 {
		return fmt.Errorf("timer poll interval must be positive")
	}
	if c.Polling.SessionInterval <= 0 {
		return fmt.Errorf("session poll interval must be positive")
	}
	if c.Polling.Jitter < 0 {
		return fmt.Errorf("poll jitter cannot be negative")
	}

	if c.Join == nil {
		return fmt.Errorf("join configuration is required")
	}
	if c.Join.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.Join.LookupCacheSize <= 0 {
		return fmt.Errorf("lookup cache size must be positive")
	}
	if c.Join.LookupCacheTTL <= 0 {
		return fmt.Errorf("lookup cache TTL must be positive")
	}

	if c.Mutations == nil {
		return fmt.Errorf("mutation configuration is required")
	}
	if c.Mutations.Timeout < 0 {
		return fmt.Errorf("mutation timeout cannot be negative")
	}

	if c.Store == nil {
		return fmt.Errorf("store configuration is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}

	if c.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json")
	}

	return nil
}

// LoadFromEnv overlays CLASSROOM_* variables on the defaults.
// Unset variables keep their default value.
func LoadFromEnv() (*Config, error) {
	config := DefaultConfig()
	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ConfigFile represents the on-disk structure
// FUNCTIONAL DISCOVERY: Separate struct for parsing to handle duration strings
type ConfigFile struct {
	API       *APIConfigFile      `json:"api" yaml:"api"`
	Auth      *AuthConfigFile     `json:"auth" yaml:"auth"`
	Polling   *PollingConfigFile  `json:"polling" yaml:"polling"`
	Join      *JoinConfigFile     `json:"join" yaml:"join"`
	Mutations *MutationConfigFile `json:"mutations" yaml:"mutations"`
	Store     *StoreConfigFile    `json:"store" yaml:"store"`
	Log       *LogConfigFile      `json:"log" yaml:"log"`
}

type APIConfigFile struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	Timeout   string `json:"timeout" yaml:"timeout"`
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

type AuthConfigFile struct {
	AccessToken string `json:"access_token" yaml:"access_token"`
}

type PollingConfigFile struct {
	RosterInterval  string `json:"roster_interval" yaml:"roster_interval"`
	ModuleInterval  string `json:"module_interval" yaml:"module_interval"`
	TimerInterval   string `json:"timer_interval" yaml:"timer_interval"`
	SessionInterval string `json:"session_interval" yaml:"session_interval"`
	Jitter          string `json:"jitter" yaml:"jitter"`
}

type JoinConfigFile struct {
	HeartbeatInterval string `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	LookupCacheSize   int    `json:"lookup_cache_size" yaml:"lookup_cache_size"`
	LookupCacheTTL    string `json:"lookup_cache_ttl" yaml:"lookup_cache_ttl"`
}

type MutationConfigFile struct {
	Timeout string `json:"timeout" yaml:"timeout"`
}

type StoreConfigFile struct {
	Path    string `json:"path" yaml:"path"`
	Timeout string `json:"timeout" yaml:"timeout"`
}

type LogConfigFile struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// LoadFromFile reads a JSON or YAML file (chosen by extension) over the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, path); err != nil {
		return nil, err
	}

	// ARCHITECTURAL DISCOVERY: Validate configuration after loading to catch errors early
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

func applyFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if f := file.API; f != nil {
		setString(&config.API.BaseURL, f.BaseURL)
		setString(&config.API.UserAgent, f.UserAgent)
		if err := setDuration(&config.API.Timeout, f.Timeout, "api.timeout"); err != nil {
			return err
		}
	}
	if f := file.Auth; f != nil {
		setString(&config.Auth.AccessToken, f.AccessToken)
	}
	if f := file.Polling; f != nil {
		for _, d := range []struct {
			dst  *time.Duration
			raw  string
			name string
		}{
			{&config.Polling.RosterInterval, f.RosterInterval, "polling.roster_interval"},
			{&config.Polling.ModuleInterval, f.ModuleInterval, "polling.module_interval"},
			{&config.Polling.TimerInterval, f.TimerInterval, "polling.timer_interval"},
			{&config.Polling.SessionInterval, f.SessionInterval, "polling.session_interval"},
			{&config.Polling.Jitter, f.Jitter, "polling.jitter"},
		} {
			if err := setDuration(d.dst, d.raw, d.name); err != nil {
				return err
			}
		}
	}
	if f := file.Join; f != nil {
		if f.LookupCacheSize > 0 {
			config.Join.LookupCacheSize = f.LookupCacheSize
		}
		if err := setDuration(&config.Join.HeartbeatInterval, f.HeartbeatInterval, "join.heartbeat_interval"); err != nil {
			return err
		}
		if err := setDuration(&config.Join.LookupCacheTTL, f.LookupCacheTTL, "join.lookup_cache_ttl"); err != nil {
			return err
		}
	}
	if f := file.Mutations; f != nil {
		if err := setDuration(&config.Mutations.Timeout, f.Timeout, "mutations.timeout"); err != nil {
			return err
		}
	}
	if f := file.Store; f != nil {
		setString(&config.Store.Path, f.Path)
		if err := setDuration(&config.Store.Timeout, f.Timeout, "store.timeout"); err != nil {
			return err
		}
	}
	if f := file.Log; f != nil {
		setString(&config.Log.Level, f.Level)
		setString(&config.Log.Format, f.Format)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw, name string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", name, err)
	}
	*dst = d
	return nil
}

// FUNCTIONAL DISCOVERY: Configuration precedence: file > environment > defaults
// A missing file is ignored; a file that exists but cannot be parsed is an error
func LoadConfigWithPrecedence(path string) (*Config, error) {
	config := DefaultConfig()

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := applyFile(config, path); err != nil {
				return nil, err
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
