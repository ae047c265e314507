package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"speedquant/internal/logging"
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   logging.Config  `yaml:"logging"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// AppConfig represents application configuration.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RateLimitConfig represents API rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// BacktestConfig represents backtest defaults.
type BacktestConfig struct {
	InitialCapital float64  `yaml:"initial_capital"`
	Commission     float64  `yaml:"commission"`
	Slippage       float64  `yaml:"slippage"`
	Symbols        []string `yaml:"symbols"`
	DataDir        string   `yaml:"data_dir"`
	StartDate      string   `yaml:"start_date"` // YYYY-MM-DD, optional
	EndDate        string   `yaml:"end_date"`   // YYYY-MM-DD, optional
	OutputDir      string   `yaml:"output_dir"`
}

// OptimizerConfig represents portfolio optimizer defaults.
type OptimizerConfig struct {
	Method       string  `yaml:"method"`
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	MinWeight    float64 `yaml:"min_weight"`
	MaxWeight    float64 `yaml:"max_weight"`
}

// Load loads configuration from a YAML file. A .env file next to the
// process, if present, is ingested first so ${VAR}-style overrides work.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in defaults, matching the reference
// configuration the optimizer and engine were tuned with.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:    "speedquant",
			Version: "dev",
			Env:     "development",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
			Burst:             20,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Backtest: BacktestConfig{
			InitialCapital: 100000,
			Commission:     0.001,
			Slippage:       0,
			OutputDir:      "results",
		},
		Optimizer: OptimizerConfig{
			Method:       "mean_variance",
			RiskFreeRate: 0.02,
			MinWeight:    0,
			MaxWeight:    1,
		},
	}
}

// applyEnv overrides selected keys from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("SPEEDQUANT_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("SPEEDQUANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SPEEDQUANT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SPEEDQUANT_DATA_DIR"); v != "" {
		c.Backtest.DataDir = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %v", c.Backtest.InitialCapital)
	}
	if c.Backtest.Commission < 0 || c.Backtest.Commission >= 1 {
		return fmt.Errorf("commission must be in [0,1), got %v", c.Backtest.Commission)
	}
	if c.Backtest.Slippage < 0 || c.Backtest.Slippage >= 1 {
		return fmt.Errorf("slippage must be in [0,1), got %v", c.Backtest.Slippage)
	}
	if c.Optimizer.MinWeight < 0 || c.Optimizer.MaxWeight > 1 || c.Optimizer.MinWeight > c.Optimizer.MaxWeight {
		return fmt.Errorf("weight bounds must satisfy 0 <= min <= max <= 1, got [%v, %v]",
			c.Optimizer.MinWeight, c.Optimizer.MaxWeight)
	}
	for _, d := range []string{c.Backtest.StartDate, c.Backtest.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("invalid date %q: %w", d, err)
		}
	}
	return nil
}
