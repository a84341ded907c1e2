// Package config loads runtime configuration for the Collabdesk client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables, including an optional .env file (see parseEnv).
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   websocket URL of the push backend
//	-u string   user id stamped on outbound messages
//	-d string   path of the local cache database
//	-r int      retry interval between send attempts (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "1s" or integer nanoseconds:
//
//	{
//	  "endpoint_url": "ws://127.0.0.1:8080/push",
//	  "user_id": "u-42",
//	  "cache_path": "collabdesk.db",
//	  "cache_ttl": "30m",
//	  "retry_interval": "1s",
//	  "max_send_attempts": 5,
//	  "history_depth": 20,
//	  "replay_interval": "5s"
//	}
//
// Primary API
//
//   - type Config                     — runtime settings for the sync client
//   - func LoadConfig() *Config       — builds Config by applying defaults, env, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
package config
