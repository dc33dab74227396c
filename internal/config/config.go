// ABOUTME: Configuration loading and parsing for tradein-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion, duration parsing and validation

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Telegram update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config represents the complete tradein-gateway configuration
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram" toml:"telegram"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Sessions    SessionsConfig    `yaml:"sessions" toml:"sessions"`
	Transcriber TranscriberConfig `yaml:"transcriber" toml:"transcriber"`
	Trading     TradingConfig     `yaml:"trading" toml:"trading"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// TelegramConfig holds bot credentials and how updates arrive
type TelegramConfig struct {
	Token string `yaml:"token" toml:"token" validate:"required"`
	Mode  string `yaml:"mode" toml:"mode" validate:"oneof=polling webhook"`

	// WebhookURL is the public URL Telegram posts updates to (webhook mode)
	WebhookURL string `yaml:"webhook_url" toml:"webhook_url" validate:"omitempty,url"`
	// ListenAddr is the local address the webhook server binds (webhook mode)
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr" validate:"omitempty,hostname_port"`

	PollTimeout    time.Duration `yaml:"-" toml:"-"`
	PollTimeoutRaw string        `yaml:"poll_timeout" toml:"poll_timeout"`

	// Debug enables the client library's request logging
	Debug bool `yaml:"debug" toml:"debug"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path" validate:"required"`
}

// SessionsConfig controls how long idle conversations are kept
type SessionsConfig struct {
	TTL    time.Duration `yaml:"-" toml:"-"`
	TTLRaw string        `yaml:"ttl" toml:"ttl"`

	MaxEntries    int    `yaml:"max_entries" toml:"max_entries" validate:"gte=0"`
	SweepSchedule string `yaml:"sweep_schedule" toml:"sweep_schedule"`
}

// TranscriberConfig selects the speech-to-text backend for voice notes
type TranscriberConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	BaseURL  string `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
	APIKey   string `yaml:"api_key" toml:"api_key"`
	Model    string `yaml:"model" toml:"model"`
	Language string `yaml:"language" toml:"language"`
}

// TradingConfig holds search and trade settings
type TradingConfig struct {
	PageSize int `yaml:"page_size" toml:"page_size" validate:"gte=0,lte=20"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"omitempty,oneof=text json"`
}

// Defaults applied to fields left empty.
const (
	DefaultPollTimeout   = 30 * time.Second
	DefaultSessionTTL    = 24 * time.Hour
	DefaultMaxEntries    = 10000
	DefaultSweepSchedule = "@every 1h"
	DefaultPageSize      = 5
	DefaultListenAddr    = ":8443"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DefaultPath returns the path to the gateway config file.
// Priority: TRADEIN_CONFIG env var > XDG_CONFIG_HOME/tradein/gateway.yaml > ~/.config/tradein/gateway.yaml
func DefaultPath() string {
	if envPath := os.Getenv("TRADEIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "tradein", "gateway.yaml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills fields the file left empty. A session ttl of "0" is an
// explicit choice to keep sessions forever and is not replaced.
func (c *Config) applyDefaults() {
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = ModePolling
	}
	if c.Telegram.PollTimeoutRaw == "" {
		c.Telegram.PollTimeout = DefaultPollTimeout
	}
	if c.Telegram.Mode == ModeWebhook && c.Telegram.ListenAddr == "" {
		c.Telegram.ListenAddr = DefaultListenAddr
	}
	if c.Sessions.TTLRaw == "" {
		c.Sessions.TTL = DefaultSessionTTL
	}
	if c.Sessions.MaxEntries == 0 {
		c.Sessions.MaxEntries = DefaultMaxEntries
	}
	if c.Sessions.SweepSchedule == "" {
		c.Sessions.SweepSchedule = DefaultSweepSchedule
	}
	if c.Trading.PageSize == 0 {
		c.Trading.PageSize = DefaultPageSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return describeFieldError(verrs[0])
		}
		return err
	}

	if c.Telegram.Mode == ModeWebhook && c.Telegram.WebhookURL == "" {
		return fmt.Errorf("telegram.webhook_url is required in webhook mode")
	}
	if c.Telegram.PollTimeout < 0 {
		return fmt.Errorf("telegram.poll_timeout must not be negative")
	}
	if c.Sessions.TTL < 0 {
		return fmt.Errorf("sessions.ttl must not be negative")
	}
	if _, err := cron.ParseStandard(c.Sessions.SweepSchedule); err != nil {
		return fmt.Errorf("sessions.sweep_schedule %q is invalid: %w", c.Sessions.SweepSchedule, err)
	}
	if c.Transcriber.Enabled && c.Transcriber.APIKey == "" {
		return fmt.Errorf("transcriber.api_key is required when transcriber is enabled")
	}

	return nil
}

// fieldNames maps struct namespaces to the keys used in config files.
var fieldNames = map[string]string{
	"Config.Telegram.Token":      "telegram.token",
	"Config.Telegram.Mode":       "telegram.mode",
	"Config.Telegram.WebhookURL": "telegram.webhook_url",
	"Config.Telegram.ListenAddr": "telegram.listen_addr",
	"Config.Database.Path":       "database.path",
	"Config.Sessions.MaxEntries": "sessions.max_entries",
	"Config.Transcriber.BaseURL": "transcriber.base_url",
	"Config.Trading.PageSize":    "trading.page_size",
	"Config.Logging.Level":       "logging.level",
	"Config.Logging.Format":      "logging.format",
}

func describeFieldError(fe validator.FieldError) error {
	name, ok := fieldNames[fe.Namespace()]
	if !ok {
		name = fe.Namespace()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", name)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s is invalid (%s)", name, fe.Tag())
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Telegram.PollTimeoutRaw != "" {
		cfg.Telegram.PollTimeout, err = time.ParseDuration(cfg.Telegram.PollTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_timeout %q: %w", cfg.Telegram.PollTimeoutRaw, err)
		}
	}

	if cfg.Sessions.TTLRaw != "" {
		cfg.Sessions.TTL, err = time.ParseDuration(cfg.Sessions.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing ttl %q: %w", cfg.Sessions.TTLRaw, err)
		}
	}

	return nil
}

// Starter is the configuration written by `tradein-gateway init`.
const Starter = `# tradein-gateway configuration
telegram:
  token: "${TELEGRAM_TOKEN}"
  mode: "polling"            # or "webhook"
  # webhook_url: "https://example.com/telegram"
  # listen_addr: ":8443"
  poll_timeout: "30s"

database:
  path: "%s"

sessions:
  ttl: "24h"                 # "0" keeps sessions until the conversation ends
  max_entries: 10000
  sweep_schedule: "@every 1h"

transcriber:
  enabled: false
  api_key: "${OPENAI_API_KEY}"
  model: "whisper-1"

trading:
  page_size: 5

logging:
  level: "info"
  format: "text"
`
