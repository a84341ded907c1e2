package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "ws://127.0.0.1:8080/push", c.EndpointURL)
	assert.Equal(t, "collabdesk.db", c.CachePath)
	assert.Equal(t, 30*time.Minute, c.CacheTTL)
	assert.Equal(t, time.Second, c.RetryInterval)
	assert.Equal(t, 5, c.MaxSendAttempts)
	assert.Equal(t, 20, c.HistoryDepth)
	assert.Equal(t, 5*time.Second, c.ReplayInterval)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "ws://127.0.0.1:8080/push", cfg.EndpointURL)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.MaxSendAttempts)
}

func Test_parseEnv_Overrides(t *testing.T) {
	t.Setenv("COLLABDESK_ENDPOINT_URL", "ws://10.0.0.1:9000/push")
	t.Setenv("COLLABDESK_USER_ID", "u-env")
	t.Setenv("COLLABDESK_CACHE_TTL", "15m")
	t.Setenv("COLLABDESK_MAX_SEND_ATTEMPTS", "7")

	var cfg Config
	cfg.LoadDefaults()
	parseEnv(&cfg)

	assert.Equal(t, "ws://10.0.0.1:9000/push", cfg.EndpointURL)
	assert.Equal(t, "u-env", cfg.UserID)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 7, cfg.MaxSendAttempts)
	assert.Equal(t, time.Second, cfg.RetryInterval, "untouched values keep defaults")
}

func Test_parseEnv_MalformedValuesIgnored(t *testing.T) {
	t.Setenv("COLLABDESK_CACHE_TTL", "not-a-duration")
	t.Setenv("COLLABDESK_HISTORY_DEPTH", "abc")

	var cfg Config
	cfg.LoadDefaults()
	parseEnv(&cfg)

	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 20, cfg.HistoryDepth)
}
