package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Roster.TeamSize)
	assert.Equal(t, 10, cfg.Roster.RoundSize)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.Roster.Categories)
	assert.Equal(t, time.Duration(0), cfg.Roster.RevealDelay)
	assert.Equal(t, 30*time.Minute, cfg.Roster.IdleTimeout)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "rodizio.yaml")
	content := "roster:\n  team_size: 6\n  round_size: 12\n  categories: [kids, adults]\n  reveal_delay: 400ms\nstore:\n  driver: memory\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("RODIZIO_SERVER_PORT", "9090")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 400*time.Millisecond, cfg.Roster.RevealDelay)

	lim := cfg.Roster.Limits()
	assert.Equal(t, 6, lim.TeamSize)
	assert.Equal(t, 12, lim.RoundSize)
	assert.True(t, lim.Allows("kids"))
	assert.False(t, lim.Allows("1"))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server: ServerConfig{Port: 8080},
			Store:  StoreConfig{Driver: "memory"},
			Roster: RosterConfig{TeamSize: 5, RoundSize: 10},
		}
	}

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: true},
		{name: "zero team size", mutate: func(c *Config) { c.Roster.TeamSize = 0 }, wantErr: true},
		{name: "empty category label", mutate: func(c *Config) { c.Roster.Categories = []string{"1", ""} }, wantErr: true},
		{name: "category label over the store cap", mutate: func(c *Config) { c.Roster.Categories = []string{strings.Repeat("k", 33)} }, wantErr: true},
		{name: "category label at the cap", mutate: func(c *Config) { c.Roster.Categories = []string{strings.Repeat("k", 32)} }},
		{name: "negative idle timeout", mutate: func(c *Config) { c.Roster.IdleTimeout = -time.Minute }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.Roster.RevealDelay = -time.Second }, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
