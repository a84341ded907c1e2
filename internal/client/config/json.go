package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/collabdesk/collabdesk/internal/flagx"
	"github.com/collabdesk/collabdesk/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "1s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	EndpointURL     string         `json:"endpoint_url"`
	UserID          string         `json:"user_id"`
	CachePath       string         `json:"cache_path"`
	CacheTTL        timex.Duration `json:"cache_ttl"`
	RetryInterval   timex.Duration `json:"retry_interval"`
	MaxSendAttempts int            `json:"max_send_attempts"`
	HistoryDepth    int            `json:"history_depth"`
	ReplayInterval  timex.Duration `json:"replay_interval"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Behavior:
//   - Reads and unmarshals the JSON into JsonConfig.
//   - Copies non-zero fields into the provided Config.
//   - Panics on read or unmarshal errors (caller should recover if desired).
//
// Intended usage is: defaults -> env -> parseJson -> parseFlags, where later
// stages override earlier ones.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.EndpointURL != "" {
		cfg.EndpointURL = jc.EndpointURL
	}
	if jc.UserID != "" {
		cfg.UserID = jc.UserID
	}
	if jc.CachePath != "" {
		cfg.CachePath = jc.CachePath
	}
	if jc.CacheTTL.Duration != 0 {
		cfg.CacheTTL = time.Duration(jc.CacheTTL.Duration)
	}
	if jc.RetryInterval.Duration != 0 {
		cfg.RetryInterval = time.Duration(jc.RetryInterval.Duration)
	}
	if jc.MaxSendAttempts != 0 {
		cfg.MaxSendAttempts = jc.MaxSendAttempts
	}
	if jc.HistoryDepth != 0 {
		cfg.HistoryDepth = jc.HistoryDepth
	}
	if jc.ReplayInterval.Duration != 0 {
		cfg.ReplayInterval = time.Duration(jc.ReplayInterval.Duration)
	}
}
