package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	for _, key := range []string{
		"STARSTREAM_FIXTURE_PATH", "STARSTREAM_LISTEN_ADDR", "STARSTREAM_TX_TIMEOUT",
		"STARSTREAM_LOG_LEVEL", "STARSTREAM_LOG_FILE", "STARSTREAM_FIXTURES_DB", "STARSTREAM_CACHE_TTL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "./fixtures", cfg.FixturePath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.TransactionTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STARSTREAM_LISTEN_ADDR", ":9090")
	t.Setenv("STARSTREAM_TX_TIMEOUT", "5s")
	t.Setenv("STARSTREAM_LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.TransactionTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MalformedDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("STARSTREAM_TX_TIMEOUT", "not-a-duration")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.TransactionTimeout)
}
