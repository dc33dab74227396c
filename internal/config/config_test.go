// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, duration parsing and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "gateway.yaml", `
telegram:
  token: "123:abc"
  mode: "webhook"
  webhook_url: "https://bot.example.com/telegram"
  listen_addr: "0.0.0.0:8443"
  poll_timeout: "10s"

database:
  path: "./test.db"

sessions:
  ttl: "2h"
  max_entries: 50
  sweep_schedule: "*/15 * * * *"

transcriber:
  enabled: true
  base_url: "https://api.example.com/v1"
  api_key: "sk-test"
  model: "whisper-1"
  language: "en"

trading:
  page_size: 3

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("Telegram.Token = %q, want %q", cfg.Telegram.Token, "123:abc")
	}
	if cfg.Telegram.Mode != ModeWebhook {
		t.Errorf("Telegram.Mode = %q, want %q", cfg.Telegram.Mode, ModeWebhook)
	}
	if cfg.Telegram.PollTimeout != 10*time.Second {
		t.Errorf("Telegram.PollTimeout = %v, want %v", cfg.Telegram.PollTimeout, 10*time.Second)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Sessions.TTL != 2*time.Hour {
		t.Errorf("Sessions.TTL = %v, want %v", cfg.Sessions.TTL, 2*time.Hour)
	}
	if cfg.Sessions.MaxEntries != 50 {
		t.Errorf("Sessions.MaxEntries = %d, want 50", cfg.Sessions.MaxEntries)
	}
	if cfg.Sessions.SweepSchedule != "*/15 * * * *" {
		t.Errorf("Sessions.SweepSchedule = %q", cfg.Sessions.SweepSchedule)
	}
	if !cfg.Transcriber.Enabled || cfg.Transcriber.APIKey != "sk-test" || cfg.Transcriber.Language != "en" {
		t.Errorf("Transcriber = %+v", cfg.Transcriber)
	}
	if cfg.Trading.PageSize != 3 {
		t.Errorf("Trading.PageSize = %d, want 3", cfg.Trading.PageSize)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "gateway.toml", `
[telegram]
token = "123:abc"

[database]
path = "/var/lib/tradein/tradein.db"

[sessions]
ttl = "30m"

[trading]
page_size = 8
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("Telegram.Token = %q", cfg.Telegram.Token)
	}
	if cfg.Database.Path != "/var/lib/tradein/tradein.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Sessions.TTL != 30*time.Minute {
		t.Errorf("Sessions.TTL = %v, want 30m", cfg.Sessions.TTL)
	}
	if cfg.Trading.PageSize != 8 {
		t.Errorf("Trading.PageSize = %d, want 8", cfg.Trading.PageSize)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "gateway.yaml", `
telegram:
  token: "123:abc"
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Mode != ModePolling {
		t.Errorf("Telegram.Mode = %q, want %q", cfg.Telegram.Mode, ModePolling)
	}
	if cfg.Telegram.PollTimeout != DefaultPollTimeout {
		t.Errorf("Telegram.PollTimeout = %v, want %v", cfg.Telegram.PollTimeout, DefaultPollTimeout)
	}
	if cfg.Telegram.ListenAddr != "" {
		t.Errorf("Telegram.ListenAddr = %q, want empty in polling mode", cfg.Telegram.ListenAddr)
	}
	if cfg.Sessions.TTL != DefaultSessionTTL {
		t.Errorf("Sessions.TTL = %v, want %v", cfg.Sessions.TTL, DefaultSessionTTL)
	}
	if cfg.Sessions.MaxEntries != DefaultMaxEntries {
		t.Errorf("Sessions.MaxEntries = %d, want %d", cfg.Sessions.MaxEntries, DefaultMaxEntries)
	}
	if cfg.Sessions.SweepSchedule != DefaultSweepSchedule {
		t.Errorf("Sessions.SweepSchedule = %q, want %q", cfg.Sessions.SweepSchedule, DefaultSweepSchedule)
	}
	if cfg.Trading.PageSize != DefaultPageSize {
		t.Errorf("Trading.PageSize = %d, want %d", cfg.Trading.PageSize, DefaultPageSize)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoad_ZeroTTLKeepsSessions(t *testing.T) {
	configPath := writeConfig(t, "gateway.yaml", `
telegram:
  token: "123:abc"
database:
  path: "./test.db"
sessions:
  ttl: "0"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sessions.TTL != 0 {
		t.Errorf("Sessions.TTL = %v, want 0", cfg.Sessions.TTL)
	}
}

func TestLoad_WebhookDefaultsListenAddr(t *testing.T) {
	configPath := writeConfig(t, "gateway.yaml", `
telegram:
  token: "123:abc"
  mode: "webhook"
  webhook_url: "https://bot.example.com/hook"
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Telegram.ListenAddr != DefaultListenAddr {
		t.Errorf("Telegram.ListenAddr = %q, want %q", cfg.Telegram.ListenAddr, DefaultListenAddr)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_TELEGRAM_TOKEN", "999:from-env")
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	configPath := writeConfig(t, "gateway.yaml", `
telegram:
  token: "${TEST_TELEGRAM_TOKEN}"
database:
  path: "./test.db"
transcriber:
  enabled: true
  api_key: "${TEST_OPENAI_KEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Token != "999:from-env" {
		t.Errorf("Telegram.Token = %q, want %q", cfg.Telegram.Token, "999:from-env")
	}
	if cfg.Transcriber.APIKey != "sk-from-env" {
		t.Errorf("Transcriber.APIKey = %q, want %q", cfg.Transcriber.APIKey, "sk-from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	// Ensure the env var is NOT set
	os.Unsetenv("UNSET_TOKEN_FOR_TEST")

	configPath := writeConfig(t, "gateway.yaml", `
telegram:
  token: "${UNSET_TOKEN_FOR_TEST}"
database:
  path: "./test.db"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for empty token, got nil")
	}
	if !strings.Contains(err.Error(), "telegram.token is required") {
		t.Errorf("error = %v, want telegram.token is required", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/gateway.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "gateway.yaml", "telegram:\n  token: [unclosed\n")

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("error = %v, want parsing config file", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid poll_timeout",
			content: "telegram:\n  token: \"t\"\n  poll_timeout: \"soon\"\ndatabase:\n  path: \"db\"\n",
			wantErr: "poll_timeout",
		},
		{
			name:    "invalid ttl",
			content: "telegram:\n  token: \"t\"\ndatabase:\n  path: \"db\"\nsessions:\n  ttl: \"a day\"\n",
			wantErr: "ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "gateway.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func validConfig() *Config {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Database: DatabaseConfig{Path: "./test.db"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token is required"},
		{"missing database", func(c *Config) { c.Database.Path = "" }, "database.path is required"},
		{"unknown mode", func(c *Config) { c.Telegram.Mode = "carrier-pigeon" }, "telegram.mode must be one of"},
		{"webhook without url", func(c *Config) { c.Telegram.Mode = ModeWebhook }, "telegram.webhook_url is required"},
		{"bad webhook url", func(c *Config) { c.Telegram.WebhookURL = "not a url" }, "telegram.webhook_url is invalid"},
		{"bad listen addr", func(c *Config) { c.Telegram.ListenAddr = "nowhere" }, "telegram.listen_addr is invalid"},
		{"negative ttl", func(c *Config) { c.Sessions.TTL = -time.Second }, "sessions.ttl must not be negative"},
		{"bad sweep schedule", func(c *Config) { c.Sessions.SweepSchedule = "every tuesday" }, "sessions.sweep_schedule"},
		{"page size too large", func(c *Config) { c.Trading.PageSize = 50 }, "trading.page_size is invalid"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level must be one of"},
		{"transcriber without key", func(c *Config) { c.Transcriber.Enabled = true }, "transcriber.api_key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_1", "value1")
	t.Setenv("TEST_VAR_2", "value2")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single var", "${TEST_VAR_1}", "value1"},
		{"multiple vars", "${TEST_VAR_1}:${TEST_VAR_2}", "value1:value2"},
		{"var in text", "token=${TEST_VAR_1}!", "token=value1!"},
		{"unset var", "${TEST_UNSET_VAR_XYZ}", ""},
		{"no vars", "plain text", "plain text"},
		{"dollar without braces", "$TEST_VAR_1", "$TEST_VAR_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvVars(tt.input); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("TRADEIN_CONFIG", "/etc/tradein.yaml")
	if got := DefaultPath(); got != "/etc/tradein.yaml" {
		t.Errorf("DefaultPath() = %q, want env override", got)
	}

	t.Setenv("TRADEIN_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "tradein", "gateway.yaml") {
		t.Errorf("DefaultPath() = %q, want XDG path", got)
	}
}

func TestStarterConfigLoads(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	content := strings.Replace(Starter, "%s", "./tradein.db", 1)

	cfg, err := Load(writeConfig(t, "gateway.yaml", content))
	if err != nil {
		t.Fatalf("Load(starter) error = %v", err)
	}
	if cfg.Database.Path != "./tradein.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}
