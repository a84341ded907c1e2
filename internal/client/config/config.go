package config

import "time"

// Config holds runtime settings for the Collabdesk sync client.
//
// Units: all intervals are time.Durations.
type Config struct {
	// EndpointURL is the websocket endpoint of the push backend.
	EndpointURL string

	// UserID identifies the local user on outbound messages.
	UserID string

	// CachePath is the SQLite file backing the local expiring cache.
	CachePath string

	// CacheTTL bounds the staleness of locally persisted conversations.
	CacheTTL time.Duration

	// RetryInterval is the fixed pause between send attempts while the
	// channel is not open.
	RetryInterval time.Duration

	// MaxSendAttempts is the retry ceiling; after it a record surfaces as
	// permanently pending.
	MaxSendAttempts int

	// HistoryDepth bounds the undo/redo journal of the budget editor.
	HistoryDepth int

	// ReplayInterval is how often pending records are replayed while the
	// channel is open.
	ReplayInterval time.Duration

	// MetricsAddr, when non-empty, is the listen address of the Prometheus
	// metrics endpoint.
	MetricsAddr string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.EndpointURL = "ws://127.0.0.1:8080/push"
	c.CachePath = "collabdesk.db"
	c.CacheTTL = 30 * time.Minute
	c.RetryInterval = time.Second
	c.MaxSendAttempts = 5
	c.HistoryDepth = 20
	c.ReplayInterval = 5 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment (including an optional .env file), a JSON file (if
// present) and command-line flags. Later sources take precedence over
// earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
