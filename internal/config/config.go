package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete server configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Roster  RosterConfig  `mapstructure:"roster"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects where rosters are persisted
type StoreConfig struct {
	// Driver is one of "sqlite", "postgres" or "memory"
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RosterConfig holds the team and round caps and the category labels
type RosterConfig struct {
	TeamSize   int      `mapstructure:"team_size"`
	RoundSize  int      `mapstructure:"round_size"`
	Categories []string `mapstructure:"categories"`
	// RevealDelay is the pause between the two halves of a team-lost or
	// substitution broadcast. 0 sends both at once.
	RevealDelay time.Duration `mapstructure:"reveal_delay"`
	// IdleTimeout stops a group's lobby after this long without clients or
	// commands; it is restored from the store on next use. 0 keeps lobbies
	// running.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Limits converts the roster settings into engine limits.
func (r RosterConfig) Limits() engine.Limits {
	return engine.Limits{
		TeamSize:   r.TeamSize,
		RoundSize:  r.RoundSize,
		Categories: r.Categories,
	}
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", filepath.Join(DataDir(), "rodizio.db"))
	v.SetDefault("store.connect_timeout", "5s")

	v.SetDefault("roster.team_size", engine.DefaultTeamSize)
	v.SetDefault("roster.round_size", engine.DefaultRoundSize)
	v.SetDefault("roster.categories", engine.DefaultCategories)
	v.SetDefault("roster.reveal_delay", "0s")
	v.SetDefault("roster.idle_timeout", "30m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// DataDir returns the directory holding local data such as the sqlite file
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "rodizio")
	}
	return "."
}

// Load reads configuration from defaults, an optional config file, a .env
// file and RODIZIO_* environment variables, in increasing priority.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DataDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RODIZIO")
	// RODIZIO_ROSTER_TEAM_SIZE for roster.team_size
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for out-of-range values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be sqlite, postgres or memory, got %q", c.Store.Driver)
	}
	if c.Roster.TeamSize <= 0 {
		return fmt.Errorf("roster.team_size must be positive, got %d", c.Roster.TeamSize)
	}
	if c.Roster.RoundSize <= 0 {
		return fmt.Errorf("roster.round_size must be positive, got %d", c.Roster.RoundSize)
	}
	for _, label := range c.Roster.Categories {
		if label == "" || len(label) > engine.MaxCategoryLength {
			return fmt.Errorf("roster.categories: label %q must be 1 to %d bytes", label, engine.MaxCategoryLength)
		}
	}
	if c.Roster.RevealDelay < 0 {
		return fmt.Errorf("roster.reveal_delay must not be negative")
	}
	if c.Roster.IdleTimeout < 0 {
		return fmt.Errorf("roster.idle_timeout must not be negative")
	}
	return nil
}
