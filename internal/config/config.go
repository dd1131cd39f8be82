// Package config loads and validates the engine configuration from YAML,
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the galileo engine.
type Config struct {
	Storage    Storage          `yaml:"storage"`
	Alpaca     Alpaca           `yaml:"alpaca"`
	Logging    Logging          `yaml:"logging"`
	Data       DataConfig       `yaml:"data"`
	Prediction PredictionConfig `yaml:"prediction"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DataConfig controls historical data loading and validation.
type DataConfig struct {
	CacheTTLHours     int     `yaml:"cache_ttl_hours"`
	FetchAttempts     int     `yaml:"fetch_attempts"`
	RateLimitPerMin   int     `yaml:"rate_limit_per_min"`
	GapToleranceDays  int     `yaml:"gap_tolerance_days"`
	OutlierThreshold  float64 `yaml:"outlier_threshold"`
	OutlierMinReturns int     `yaml:"outlier_min_returns"`
}

// PredictionConfig controls the walk-forward prediction engine.
type PredictionConfig struct {
	Frequency           string    `yaml:"frequency"` // daily | weekly | monthly
	LookbackWindow      int       `yaml:"lookback_window"`
	MinBars             int       `yaml:"min_bars"`
	ConfidenceThreshold float64   `yaml:"confidence_threshold"`
	EnsembleWeights     []float64 `yaml:"ensemble_weights"`
}

// SimulationConfig defines capital, cost, and sizing parameters.
type SimulationConfig struct {
	InitialCapital           float64 `yaml:"initial_capital"`
	CommissionRate           float64 `yaml:"commission_rate"`
	SlippageRate             float64 `yaml:"slippage_rate"`
	MaxPositionSize          float64 `yaml:"max_position_size"`
	EntryConfidenceThreshold float64 `yaml:"entry_confidence_threshold"`
	ExitConfidenceThreshold  float64 `yaml:"exit_confidence_threshold"`
}

// Default returns a Config populated with the documented defaults. Loading a
// file overlays it.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/cache.db",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Data: DataConfig{
			CacheTTLHours:     24,
			FetchAttempts:     2, // one retry on a corrupt fetch
			RateLimitPerMin:   200,
			GapToleranceDays:  5,
			OutlierThreshold:  3.0,
			OutlierMinReturns: 20,
		},
		Prediction: PredictionConfig{
			Frequency:           "daily",
			LookbackWindow:      60,
			MinBars:             30,
			ConfidenceThreshold: 0.1,
		},
		Simulation: SimulationConfig{
			InitialCapital:           100000,
			CommissionRate:           0.001,
			SlippageRate:             0.0005,
			MaxPositionSize:          0.20,
			EntryConfidenceThreshold: 0.5,
			ExitConfidenceThreshold:  0.5,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, overlays it on
// the defaults, applies environment variable overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Simulation.InitialCapital = f
		}
	}

	// Canonical Alpaca env vars used by the SDK take highest priority.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("APCA_API_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
}

// Validate checks that every numeric field is inside its documented range.
func (c *Config) Validate() error {
	sim := c.Simulation
	if sim.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be > 0, got %v", sim.InitialCapital)
	}
	if sim.CommissionRate < 0 {
		return fmt.Errorf("commission_rate must be >= 0, got %v", sim.CommissionRate)
	}
	if sim.SlippageRate < 0 {
		return fmt.Errorf("slippage_rate must be >= 0, got %v", sim.SlippageRate)
	}
	if sim.MaxPositionSize <= 0 || sim.MaxPositionSize > 1 {
		return fmt.Errorf("max_position_size must be in (0,1], got %v", sim.MaxPositionSize)
	}
	if sim.EntryConfidenceThreshold < 0 || sim.EntryConfidenceThreshold > 1 {
		return fmt.Errorf("entry_confidence_threshold must be in [0,1], got %v", sim.EntryConfidenceThreshold)
	}
	if sim.ExitConfidenceThreshold < 0 || sim.ExitConfidenceThreshold > 1 {
		return fmt.Errorf("exit_confidence_threshold must be in [0,1], got %v", sim.ExitConfidenceThreshold)
	}

	pred := c.Prediction
	if pred.LookbackWindow <= 0 {
		return fmt.Errorf("lookback_window must be positive, got %d", pred.LookbackWindow)
	}
	switch pred.Frequency {
	case "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("prediction frequency must be daily, weekly, or monthly, got %q", pred.Frequency)
	}
	if pred.ConfidenceThreshold < 0 || pred.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %v", pred.ConfidenceThreshold)
	}

	if c.Data.OutlierThreshold <= 0 {
		return fmt.Errorf("outlier_threshold must be positive, got %v", c.Data.OutlierThreshold)
	}
	if c.Data.FetchAttempts < 1 {
		return fmt.Errorf("fetch_attempts must be >= 1, got %d", c.Data.FetchAttempts)
	}
	return nil
}
