// Package config loads the server configuration from the environment.
// A .env file, if present, is loaded first; every variable carries the
// FORGE_ prefix.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable of the server. Monetary values are
// micro-credits.
type Config struct {
	Port   int    `envconfig:"PORT" default:"8080"`
	DBPath string `envconfig:"DB_PATH" default:"data/forgecredit.db"`

	// JWTSecret signs caller tokens. Leave empty to run the API read-only.
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Admin is the fixed administrative identity on all four registries.
	Admin string `envconfig:"ADMIN" required:"true"`

	FeeBps       int64  `envconfig:"FEE_BPS" default:"250"`
	FeeCollector string `envconfig:"FEE_COLLECTOR" default:"treasury"`
	MinTip       int64  `envconfig:"MIN_TIP" default:"10000"`

	MinMatchScore   int `envconfig:"MIN_MATCH_SCORE" default:"40"`
	MaxApplications int `envconfig:"MAX_APPLICATIONS" default:"50"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("forge", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.FeeBps < 0 || cfg.FeeBps > 10000 {
		return nil, fmt.Errorf("config: FORGE_FEE_BPS out of range: %d", cfg.FeeBps)
	}
	if cfg.MinTip <= 0 {
		return nil, fmt.Errorf("config: FORGE_MIN_TIP must be positive")
	}
	return &cfg, nil
}
