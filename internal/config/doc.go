// Package config handles configuration loading for tradein-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Missing values get defaults, then the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TRADEIN_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tradein/gateway.yaml
//  3. ~/.config/tradein/gateway.yaml
//
// A path ending in .toml is decoded as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	telegram:
//	  token: "${TELEGRAM_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	telegram:
//	  poll_timeout: "30s"
//	sessions:
//	  ttl: "24h"
//
// A session ttl of "0" keeps sessions until the conversation ends.
//
// # Configuration Sections
//
// Telegram delivery (polling or webhook):
//
//	telegram:
//	  token: "${TELEGRAM_TOKEN}"
//	  mode: "webhook"
//	  webhook_url: "https://bot.example.com/telegram"
//	  listen_addr: ":8443"
//
// Storage:
//
//	database:
//	  path: "/var/lib/tradein/tradein.db"
//
// Session lifetime and the cron schedule of the expired-session sweep:
//
//	sessions:
//	  ttl: "24h"
//	  max_entries: 10000
//	  sweep_schedule: "@every 1h"
//
// Voice note transcription through an OpenAI-compatible endpoint:
//
//	transcriber:
//	  enabled: true
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "whisper-1"
//
// Search and logging:
//
//	trading:
//	  page_size: 5
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text or json
//
// # Validation
//
// Field rules are declared as validator struct tags; Validate adds the
// cross-field checks (webhook mode needs a URL, an enabled transcriber needs
// a key, the sweep schedule must parse as a cron expression).
package config
