package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// FUNCTIONAL VALIDATION TEST: Defaults follow the browser client's polling cadence
func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig should not return nil")
	}
	if config.Polling.RosterInterval != 10*time.Second {
		t.Errorf("Expected roster interval 10s, got %v", config.Polling.RosterInterval)
	}
	if config.Polling.ModuleInterval != 5*time.Second {
		t.Errorf("Expected module interval 5s, got %v", config.Polling.ModuleInterval)
	}
	if config.Polling.TimerInterval != 5*time.Second {
		t.Errorf("Expected timer interval 5s, got %v", config.Polling.TimerInterval)
	}
	if config.Store.Path == "" {
		t.Error("Default store path should not be empty")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// FUNCTIONAL VALIDATION TEST: Configuration validation prevents invalid settings
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }},
		{"base url without scheme", func(c *Config) { c.API.BaseURL = "localhost:8000" }},
		{"zero api timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"zero roster interval", func(c *Config) { c.Polling.RosterInterval = 0 }},
		{"negative jitter", func(c *Config) { c.Polling.Jitter = -time.Second }},
		{"zero heartbeat", func(c *Config) { c.Join.HeartbeatInterval = 0 }},
		{"zero cache size", func(c *Config) { c.Join.LookupCacheSize = 0 }},
		{"negative mutation timeout", func(c *Config) { c.Mutations.Timeout = -1 }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"missing section", func(c *Config) { c.Polling = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

// FUNCTIONAL VALIDATION TEST: Environment variable configuration loading
func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("CLASSROOM_API_BASE_URL", "https://classroom.example.edu")
	t.Setenv("CLASSROOM_POLLING_ROSTER_INTERVAL", "3s")
	t.Setenv("CLASSROOM_STORE_PATH", "/tmp/creds.db")
	t.Setenv("CLASSROOM_AUTH_ACCESS_TOKEN", "abc")

	config, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if config.API.BaseURL != "https://classroom.example.edu" {
		t.Errorf("Expected base url from env, got %s", config.API.BaseURL)
	}
	if config.Polling.RosterInterval != 3*time.Second {
		t.Errorf("Expected roster interval 3s, got %v", config.Polling.RosterInterval)
	}
	if config.Store.Path != "/tmp/creds.db" {
		t.Errorf("Expected store path /tmp/creds.db, got %s", config.Store.Path)
	}
	if config.Auth.AccessToken != "abc" {
		t.Errorf("Expected access token from env, got %q", config.Auth.AccessToken)
	}
	if config.Polling.ModuleInterval != 5*time.Second {
		t.Errorf("Unset variables should keep defaults, got %v", config.Polling.ModuleInterval)
	}
}

func TestConfig_LoadFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("CLASSROOM_POLLING_TIMER_INTERVAL", "soon")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for unparsable duration")
	}
}

// TECHNICAL VALIDATION TEST: Configuration file parsing
func TestConfig_LoadFromFileJSON(t *testing.T) {
	path := writeFile(t, "classroom.json", `{
		"api": {"base_url": "https://api.example.edu", "timeout": "5s"},
		"polling": {"roster_interval": "20s", "jitter": "0s"},
		"log": {"level": "debug", "format": "json"}
	}`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.API.BaseURL != "https://api.example.edu" {
		t.Errorf("Expected base url from file, got %s", config.API.BaseURL)
	}
	if config.API.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", config.API.Timeout)
	}
	if config.Polling.RosterInterval != 20*time.Second {
		t.Errorf("Expected roster interval 20s, got %v", config.Polling.RosterInterval)
	}
	if config.Polling.Jitter != 0 {
		t.Errorf("Expected zero jitter, got %v", config.Polling.Jitter)
	}
	if config.Log.Format != "json" {
		t.Errorf("Expected json log format, got %s", config.Log.Format)
	}
}

func TestConfig_LoadFromFileYAML(t *testing.T) {
	path := writeFile(t, "classroom.yaml", `
join:
  heartbeat_interval: 15s
  lookup_cache_size: 8
mutations:
  timeout: 45s
store:
  path: /var/lib/classroom/creds.db
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Join.HeartbeatInterval != 15*time.Second {
		t.Errorf("Expected heartbeat 15s, got %v", config.Join.HeartbeatInterval)
	}
	if config.Join.LookupCacheSize != 8 {
		t.Errorf("Expected cache size 8, got %d", config.Join.LookupCacheSize)
	}
	if config.Mutations.Timeout != 45*time.Second {
		t.Errorf("Expected mutation timeout 45s, got %v", config.Mutations.Timeout)
	}
	if config.Store.Path != "/var/lib/classroom/creds.db" {
		t.Errorf("Expected store path from file, got %s", config.Store.Path)
	}
}

func TestConfig_LoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := writeFile(t, "bad.json", `{"api": `)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("Expected error for malformed JSON")
	}

	badDuration := writeFile(t, "dur.json", `{"polling": {"roster_interval": "often"}}`)
	if _, err := LoadFromFile(badDuration); err == nil {
		t.Error("Expected error for invalid duration")
	}

	invalid := writeFile(t, "invalid.json", `{"api": {"base_url": "ftp://nope"}}`)
	if _, err := LoadFromFile(invalid); err == nil {
		t.Error("Expected validation error")
	}
}

// FUNCTIONAL VALIDATION TEST: Configuration precedence: file > environment > defaults
func TestConfig_Precedence(t *testing.T) {
	t.Setenv("CLASSROOM_API_BASE_URL", "https://env.example.edu")
	t.Setenv("CLASSROOM_LOG_LEVEL", "warn")

	path := writeFile(t, "classroom.json", `{"api": {"base_url": "https://file.example.edu"}}`)

	config, err := LoadConfigWithPrecedence(path)
	if err != nil {
		t.Fatalf("LoadConfigWithPrecedence failed: %v", err)
	}
	if config.API.BaseURL != "https://file.example.edu" {
		t.Errorf("File should override env, got %s", config.API.BaseURL)
	}
	if config.Log.Level != "warn" {
		t.Errorf("Env should override defaults, got %s", config.Log.Level)
	}
	if config.API.Timeout != 15*time.Second {
		t.Errorf("Defaults should fill the rest, got %v", config.API.Timeout)
	}
}

func TestConfig_PrecedenceMissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("CLASSROOM_API_BASE_URL", "https://env.example.edu")

	config, err := LoadConfigWithPrecedence(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Missing file should not be an error: %v", err)
	}
	if config.API.BaseURL != "https://env.example.edu" {
		t.Errorf("Expected env base url, got %s", config.API.BaseURL)
	}
}
