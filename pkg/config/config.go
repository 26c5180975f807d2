// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the server. Values come from the
// environment (optionally via a .env file); the -debug and -port flags in
// main override their fields.
type Config struct {
	Port  string `env:"PORT" envDefault:"8080"`
	Debug bool   `env:"DEBUG" envDefault:"false"`

	AllowedOrigin string   `env:"FRONTEND_PATH"`
	APIKeys       []string `env:"API_KEYS"`

	// GracePeriod is how long a disconnected seat may stay empty before the
	// session is abandoned in the opponent's favor.
	GracePeriod time.Duration `env:"DISCONNECT_GRACE" envDefault:"30s"`

	// SweepInterval bounds how late a flag fall can be observed when the
	// flagged side never acts again.
	SweepInterval time.Duration `env:"CLOCK_SWEEP_INTERVAL" envDefault:"1s"`

	ArchivePath string `env:"ARCHIVE_PATH" envDefault:"games.db"`

	// RatingBand is the maximum rating difference the matchmaking queue
	// will pair across.
	RatingBand int `env:"MATCHMAKING_RATING_BAND" envDefault:"200"`
}

// Load reads a .env file when present and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}
