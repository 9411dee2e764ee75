// ABOUTME: Server configuration loaded from TAGFEED_* environment variables and an optional .env file.
// ABOUTME: Enforces that non-loopback binds are an explicit opt-in.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrNonLoopbackBind is returned when the bind address is reachable from other
// hosts but TAGFEED_ALLOW_REMOTE was not set.
var ErrNonLoopbackBind = errors.New(
	"TAGFEED_BIND is a non-loopback address but TAGFEED_ALLOW_REMOTE is not true",
)

// Config holds process configuration loaded from the environment.
type Config struct {
	Bind         string `env:"TAGFEED_BIND" envDefault:"127.0.0.1:1337"`
	DataDir      string `env:"TAGFEED_DATA_DIR"`
	InstanceURL  string `env:"TAGFEED_INSTANCE_URL" envDefault:"https://dice.camp"`
	SettingsPath string `env:"TAGFEED_SETTINGS"`
	AllowRemote  bool   `env:"TAGFEED_ALLOW_REMOTE" envDefault:"false"`
}

// LoadDotEnv reads KEY=VALUE pairs from path without overriding variables
// already set in the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv parses the TAGFEED_* variables, fills defaults, and validates the
// bind address.
func FromEnv() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate refuses non-loopback binds unless remote access was requested.
// Only 127.0.0.0/8, ::1, and "localhost" count as loopback.
func (c *Config) Validate() error {
	if c.AllowRemote {
		return nil
	}
	host, _, err := net.SplitHostPort(c.Bind)
	if err != nil {
		return fmt.Errorf("invalid TAGFEED_BIND %q: %w", c.Bind, err)
	}

	switch ip := net.ParseIP(host); {
	case host == "localhost":
		return nil
	case ip != nil && ip.IsLoopback():
		return nil
	default:
		// Includes the empty host, which binds every interface.
		return fmt.Errorf("%w: TAGFEED_BIND=%s", ErrNonLoopbackBind, c.Bind)
	}
}

// DefaultDataDir returns $XDG_DATA_HOME/tagfeed, falling back to
// ~/.local/share/tagfeed.
func DefaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tagfeed"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "tagfeed"), nil
}
