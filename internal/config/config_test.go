package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  name: speedquant
  env: production
server:
  port: 9090
backtest:
  initial_capital: 50000
  commission: 0.002
  symbols: [AAPL, MSFT]
  start_date: "2023-01-01"
optimizer:
  method: risk_parity
  risk_free_rate: 0.01
  max_weight: 0.6
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 50000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Backtest.Symbols)
	assert.Equal(t, "risk_parity", cfg.Optimizer.Method)
	assert.Equal(t, 0.6, cfg.Optimizer.MaxWeight)

	// Unset keys keep defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 0.0, cfg.Optimizer.MinWeight)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative capital", func(c *Config) { c.Backtest.InitialCapital = -1 }},
		{"commission out of range", func(c *Config) { c.Backtest.Commission = 1.5 }},
		{"slippage out of range", func(c *Config) { c.Backtest.Slippage = -0.1 }},
		{"inverted weight bounds", func(c *Config) { c.Optimizer.MinWeight = 0.8; c.Optimizer.MaxWeight = 0.2 }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad date", func(c *Config) { c.Backtest.StartDate = "01/02/2023" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	t.Setenv("SPEEDQUANT_PORT", "7070")
	t.Setenv("SPEEDQUANT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
