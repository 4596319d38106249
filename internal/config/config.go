// Package config loads importcost's runtime configuration: an optional
// .importcost.kdl file plus .env overrides, in the teacher's layered style
// (internal/config/kdl_config.go, gateway/config/config.go).
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/standardbeagle/importcost/internal/types"
)

// Config is the fully resolved set of options the orchestrator and its
// drivers need beyond the per-call types.Config.
type Config struct {
	types.Config
	CacheDir  string
	Externals []string
}

// Default returns the configuration used when no .importcost.kdl file and no
// environment overrides are present.
func Default() Config {
	return Config{
		Config: types.Config{Concurrent: true, MaxCallTime: 30_000},
	}
}

// Load resolves configuration in increasing priority: built-in defaults, then
// an optional .importcost.kdl under projectRoot, then IMPORTCOST_*
// environment variables (loaded from an optional .env via godotenv the same
// way the teacher's gateway config loads secrets).
func Load(projectRoot string) (Config, error) {
	cfg := Default()

	kdlCfg, err := LoadKDL(projectRoot)
	if err != nil {
		return Config{}, err
	}
	if kdlCfg != nil {
		cfg = *kdlCfg
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("IMPORTCOST_CONCURRENT"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Concurrent = b
		}
	}
	if v, ok := os.LookupEnv("IMPORTCOST_MAX_CALL_TIME"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxCallTime = n
		}
	}
	if v, ok := os.LookupEnv("IMPORTCOST_CACHE_DIR"); ok && v != "" {
		cfg.CacheDir = v
	}
}
