package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the spectator relay.
type Config struct {
	MaxStudents          int           `env:"SPECTATOR_MAX_STUDENTS" envDefault:"10"`
	SweepInterval        time.Duration `env:"SPECTATOR_SWEEP_INTERVAL" envDefault:"1h"`
	RoomMaxAge           time.Duration `env:"SPECTATOR_ROOM_MAX_AGE" envDefault:"24h"`
	AllowedOrigins       []string      `env:"SPECTATOR_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	MaxMessagesPerSecond int           `env:"SPECTATOR_MAX_MESSAGES_PER_SECOND" envDefault:"30"`
	WSPath               string        `env:"SPECTATOR_WS_PATH" envDefault:"/ws"`
}

// Load reads an optional .env file and then parses the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the registry cannot run with.
func (c *Config) Validate() error {
	if c.MaxStudents < 1 {
		return fmt.Errorf("SPECTATOR_MAX_STUDENTS must be positive, got %d", c.MaxStudents)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SPECTATOR_SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.RoomMaxAge <= 0 {
		return fmt.Errorf("SPECTATOR_ROOM_MAX_AGE must be positive, got %s", c.RoomMaxAge)
	}
	if c.MaxMessagesPerSecond < 1 {
		return fmt.Errorf("SPECTATOR_MAX_MESSAGES_PER_SECOND must be positive, got %d", c.MaxMessagesPerSecond)
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("SPECTATOR_ALLOWED_ORIGINS must list at least one pattern")
	}
	return nil
}
