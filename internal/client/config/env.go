package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with values from the process environment.
// A .env file in the working directory is loaded first, if present;
// real environment variables win over .env entries.
//
// Recognized variables:
//
//	COLLABDESK_ENDPOINT_URL
//	COLLABDESK_USER_ID
//	COLLABDESK_CACHE_PATH
//	COLLABDESK_CACHE_TTL        (Go duration, e.g. "30m")
//	COLLABDESK_RETRY_INTERVAL   (Go duration, e.g. "1s")
//	COLLABDESK_MAX_SEND_ATTEMPTS
//	COLLABDESK_HISTORY_DEPTH
//	COLLABDESK_REPLAY_INTERVAL  (Go duration, e.g. "5s")
//	COLLABDESK_METRICS_ADDR     (e.g. ":9100", empty disables metrics)
//
// Malformed values are ignored.
func parseEnv(cfg *Config) {
	_ = godotenv.Load(".env")

	if v := os.Getenv("COLLABDESK_ENDPOINT_URL"); v != "" {
		cfg.EndpointURL = v
	}
	if v := os.Getenv("COLLABDESK_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("COLLABDESK_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if d, ok := envDuration("COLLABDESK_CACHE_TTL"); ok {
		cfg.CacheTTL = d
	}
	if d, ok := envDuration("COLLABDESK_RETRY_INTERVAL"); ok {
		cfg.RetryInterval = d
	}
	if n, ok := envInt("COLLABDESK_MAX_SEND_ATTEMPTS"); ok {
		cfg.MaxSendAttempts = n
	}
	if n, ok := envInt("COLLABDESK_HISTORY_DEPTH"); ok {
		cfg.HistoryDepth = n
	}
	if d, ok := envDuration("COLLABDESK_REPLAY_INTERVAL"); ok {
		cfg.ReplayInterval = d
	}
	if v := os.Getenv("COLLABDESK_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
