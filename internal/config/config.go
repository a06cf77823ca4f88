// Package config loads the server configuration from YAML with defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MinSeedLength is the shortest accepted map seed. A short seed makes the
// mine field trivially guessable, so startup rejects it.
const MinSeedLength = 10

// Server holds all configuration for the minefield server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Persistent store location (SQLite file path).
	StorePath string `yaml:"store_path"`

	// MapSeed derives the entire mine field. Changing it regenerates the
	// world; it must be at least MinSeedLength characters.
	MapSeed string `yaml:"map_seed"`

	// Logging: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// StaticDir, when set, is served at the HTTP root next to the
	// websocket endpoint.
	StaticDir string `yaml:"static_dir"`

	// Outbound queue tuning.
	SendQueueSize int           `yaml:"send_queue_size"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// Default returns a Server config with sensible defaults. The map seed has
// no default: it must be chosen deliberately.
func Default() Server {
	return Server{
		BindAddress:   "0.0.0.0",
		Port:          8080,
		StorePath:     "minefield.db",
		LogLevel:      "info",
		SendQueueSize: 64,
		WriteTimeout:  5 * time.Second,
	}
}

// Load reads the config from a YAML file over the defaults. A missing file
// returns defaults; validation still applies.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot safely run with.
func (c Server) Validate() error {
	if len(c.MapSeed) < MinSeedLength {
		return fmt.Errorf("map_seed must be at least %d characters, got %d", MinSeedLength, len(c.MapSeed))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path must not be empty")
	}
	return nil
}
