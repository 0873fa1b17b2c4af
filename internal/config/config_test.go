package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
[server]
port = 8080

[storage]
sqlite_path = "events.db"

[[routes]]
id = 3

  [[routes.legs]]
  site = "North"
  dock = [0, 1000, 100]
  direction = [0, 1]

  [[routes.legs]]
  site = "South"
  dock = [0, -1000, 50]
  direction = [0, -1]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndValidateDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 100, cfg.Storage.MaxEventsInAPI)

	a := cfg.Airships
	assert.Equal(t, 24.0, a.NominalSpeed)
	assert.Equal(t, 60.0, a.DockingDurationSecs)
	assert.Equal(t, "predecessor", a.RouteModel)
	assert.Nil(t, a.SpeedOverride)
	assert.Equal(t, 5.0, a.RadarCruiseSecs)
	assert.Equal(t, 3.0, a.RadarTransitionSecs)
	assert.Equal(t, 2.0, a.RadarFinalApproachSecs)
	assert.Equal(t, 225.0, a.CloseToDock)
	assert.Equal(t, 400.0, a.VeryClose)
	assert.Equal(t, 50.0, a.HoldMargin)
	assert.Equal(t, 1000.0, a.SomewhatClose)
	assert.Equal(t, 700.0, a.PassingClose)
	assert.Equal(t, 2500.0, a.MatchRange)

	assert.Equal(t, 50, cfg.Simulation.TickMs)
	assert.Equal(t, 1, cfg.Simulation.AirshipsPerRoute)

	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "predecessor", cfg.Routes[0].Model)
	assert.Equal(t, 300.0, cfg.Routes[0].CruiseHeight)
	assert.Equal(t, []float64{0, 1000, 100}, cfg.Routes[0].Legs[0].Dock)
}

func TestWorldEpoch(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultEpoch, cfg.World.Epoch)

	cfg, err = Load(writeConfig(t, minimalConfig+"\n[world]\nepoch = 2030-03-15T12:00:00Z\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Date(2030, time.March, 15, 12, 0, 0, 0, time.UTC), cfg.World.Epoch.UTC())
}

func TestLoadSpeedOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+"\n[airships]\nspeed_override = 0.75\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Airships.SpeedOverride)
	assert.Equal(t, 0.75, *cfg.Airships.SpeedOverride)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
		{"bad storage", func(c *Config) { c.Storage.Type = "postgres" }, "invalid storage type"},
		{"no sqlite path", func(c *Config) { c.Storage.SQLitePath = "" }, "sqlite_path is required"},
		{"bad model", func(c *Config) { c.Airships.RouteModel = "swarm" }, "invalid route_model"},
		{"bad override", func(c *Config) { v := 3.0; c.Airships.SpeedOverride = &v }, "speed_override"},
		{"no routes", func(c *Config) { c.Routes = nil }, "at least one route"},
		{"one leg", func(c *Config) { c.Routes[0].Legs = c.Routes[0].Legs[:1] }, "at least two legs"},
		{"duplicate route", func(c *Config) { c.Routes = append(c.Routes, c.Routes[0]) }, "duplicate route id"},
		{"short dock", func(c *Config) { c.Routes[0].Legs[1].Dock = []float64{1, 2} }, "dock must have 3 components"},
		{"missing site", func(c *Config) { c.Routes[0].Legs[0].Site = "" }, "site is required"},
		{"bad observer", func(c *Config) { c.Simulation.ObserverPos = []float64{1} }, "observer_pos"},
		{"zone needs two legs", func(c *Config) {
			c.Routes[0].Model = "zone"
			c.Routes[0].Legs = append(c.Routes[0].Legs, c.Routes[0].Legs[0])
		}, "exactly two legs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithFallback(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)

	_, err = LoadWithFallback(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestExampleConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Routes, 2)
	assert.Equal(t, "zone", cfg.Routes[1].Model)
}
