// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
)

// Config is the full server configuration
type Config struct {
	Host            string         `env:"HOST"             envDefault:"localhost"`
	Port            int            `env:"PORT"             envDefault:"8080"`
	Debug           bool           `env:"DEBUG"`
	TurnTimeout     time.Duration  `env:"TURN_TIMEOUT"     envDefault:"30s"`
	Readiness       room.Readiness `env:"READINESS_POLICY" envDefault:"all"`
	MaxRoomPlayers  int            `env:"MAX_ROOM_PLAYERS" envDefault:"8"`
	RoomIdleTTL     time.Duration  `env:"ROOM_IDLE_TTL"    envDefault:"6h"`
	CleanupInterval time.Duration  `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	CatalogPath     string         `env:"CATALOG_PATH"`

	Ngrok     Ngrok     `envPrefix:"NGROK_"`
	Telemetry Telemetry `envPrefix:"OTEL_"`
}

// Telemetry configures trace export. Tracing stays off without an endpoint.
type Telemetry struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"true"`
	Endpoint string `env:"ENDPOINT"`
}

// Ngrok configures the optional public tunnel
type Ngrok struct {
	Enabled   bool   `env:"ENABLED"`
	AuthToken string `env:"AUTHTOKEN"`
	Domain    string `env:"DOMAIN"`
}

// Load parses the process environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom parses the given variables instead of the process environment
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 0 and 65535, got %d", c.Port))
	}
	if c.TurnTimeout <= 0 {
		errs = append(errs, errors.New("TURN_TIMEOUT must be positive"))
	}
	if !c.Readiness.Valid() {
		errs = append(errs, fmt.Errorf("READINESS_POLICY must be %q or %q, got %q", room.ReadyAll, room.ReadyNonHost, c.Readiness))
	}
	if c.MaxRoomPlayers < engine.MinPlayers {
		errs = append(errs, fmt.Errorf("MAX_ROOM_PLAYERS must be at least %d", engine.MinPlayers))
	}
	if c.RoomIdleTTL <= 0 {
		errs = append(errs, errors.New("ROOM_IDLE_TTL must be positive"))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("CLEANUP_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
