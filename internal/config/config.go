// Package config loads Starstream's runtime tunables: logging options,
// the code cache's entry lifetime and fixture store, the debug-fixture search
// path, and the HTTP listen address cmd/starstream binds to. Options are
// environment-first with hardcoded defaults, a manual env-parsing
// convention rather than a config file parser or a struct-tag binding
// library.
package config

import (
	"os"
	"time"

	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/platform/logging"
)

// Config holds every tunable Starstream's components read at startup.
// The zero value is not usable; call Load.
type Config struct {
	Logging logging.Options
	Cache   code.Config

	// FixturePath is the directory internal/linker's debug fixture loader
	// searches for name-to-CodeHash resolution.
	FixturePath string

	// ListenAddr is the address cmd/starstream's HTTP server binds to.
	ListenAddr string

	// TransactionTimeout bounds how long a single Run call may take
	// before cmd/starstream's HTTP handler gives up and returns an error,
	// guarding against a coordination script that never terminates.
	TransactionTimeout time.Duration
}

// Load builds a Config from environment variables, falling back to
// Starstream's defaults for anything unset. It never returns an error:
// a malformed environment variable is not a startup failure; Load
// silently substitutes the default instead of refusing to start, and
// logs nothing.
func Load() Config {
	cfg := Config{
		Logging:            logging.DefaultOptions(),
		Cache:              code.DefaultConfig(),
		FixturePath:        getEnv("STARSTREAM_FIXTURE_PATH", "./fixtures"),
		ListenAddr:         getEnv("STARSTREAM_LISTEN_ADDR", ":8080"),
		TransactionTimeout: getDuration("STARSTREAM_TX_TIMEOUT", 30*time.Second),
	}

	cfg.Logging.Level = getEnv("STARSTREAM_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.FilePath = getEnv("STARSTREAM_LOG_FILE", cfg.Logging.FilePath)
	cfg.Cache.FixturesDir = getEnv("STARSTREAM_FIXTURES_DB", cfg.Cache.FixturesDir)
	cfg.Cache.EntryLifeWindow = getDuration("STARSTREAM_CACHE_TTL", cfg.Cache.EntryLifeWindow)

	return cfg
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
