// Package config loads surnamesim configuration from defaults, a YAML file
// and SURNAMESIM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config contains all surnamesim settings.
type Config struct {
	// Simulation holds the parameters that shape the run.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Logging configures the operational logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Output configures where reports go besides the console.
	Output OutputConfig `json:"output" yaml:"output"`
}

// SimulationConfig is the configuration surface of the simulation driver.
type SimulationConfig struct {
	// InitialPopulation is the number of root agents at year 0.
	InitialPopulation int `json:"initial_population" yaml:"initial_population"`

	// Years is the simulation horizon.
	Years int `json:"years" yaml:"years"`

	// ReportInterval is the number of years between reports.
	ReportInterval int `json:"report_interval" yaml:"report_interval"`

	// FertilityModifier scales the birth chance of every pending conception.
	// Too low and the population collapses; too high and it explodes.
	FertilityModifier float64 `json:"fertility_modifier" yaml:"fertility_modifier"`

	// Seed makes the run reproducible. Unset means a fresh random seed.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// AgePolicy picks the starting age of root agents: "gaussian" or "exponential".
	AgePolicy string `json:"age_policy" yaml:"age_policy"`

	// Workers bounds the goroutines per phase. 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`

	// CheckInvariants verifies the population after every simulated year.
	CheckInvariants bool `json:"check_invariants" yaml:"check_invariants"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is "debug", "info" (default), "warn" or "error".
	Level string `json:"level" yaml:"level"`

	// Format is "auto" (default), "text" or "json". Auto picks text on a
	// terminal and JSON otherwise.
	Format string `json:"format" yaml:"format"`
}

// OutputConfig configures report sinks.
type OutputConfig struct {
	// HistoryDB is a SQLite path for per-report stats history. Empty disables it.
	HistoryDB string `json:"history_db,omitempty" yaml:"history_db,omitempty"`

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	// Quiet suppresses the console report.
	Quiet bool `json:"quiet" yaml:"quiet"`
}

// Default returns a Config with the standard run: 10,000 people for 500
// years, reporting every 100.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			InitialPopulation: 10000,
			Years:             500,
			ReportInterval:    100,
			FertilityModifier: 2.0,
			AgePolicy:         "gaussian",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load builds a Config from defaults, the file at path (if non-empty), and
// environment overrides, in that order.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks the configuration. Errors are fatal; nothing is clamped.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"": true, "auto": true, "text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: auto, text, json)", c.Logging.Format)
	}
	return nil
}

// Validate checks the simulation parameters.
func (s SimulationConfig) Validate() error {
	if s.InitialPopulation <= 0 {
		return fmt.Errorf("initial_population must be positive, got %d", s.InitialPopulation)
	}
	if s.Years <= 0 {
		return fmt.Errorf("years must be positive, got %d", s.Years)
	}
	if s.ReportInterval <= 0 {
		return fmt.Errorf("report_interval must be positive, got %d", s.ReportInterval)
	}
	if s.FertilityModifier <= 0 {
		return fmt.Errorf("fertility_modifier must be positive, got %g", s.FertilityModifier)
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", s.Workers)
	}
	switch s.AgePolicy {
	case "", "gaussian", "exponential":
	default:
		return fmt.Errorf("invalid age_policy: %s (valid: gaussian, exponential)", s.AgePolicy)
	}
	return nil
}

// applyEnvOverrides applies SURNAMESIM_* environment variables.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("SURNAMESIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SURNAMESIM_SEED: %w", err)
		}
		config.Simulation.Seed = &seed
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"SURNAMESIM_POPULATION", &config.Simulation.InitialPopulation},
		{"SURNAMESIM_YEARS", &config.Simulation.Years},
		{"SURNAMESIM_REPORT_INTERVAL", &config.Simulation.ReportInterval},
		{"SURNAMESIM_WORKERS", &config.Simulation.Workers},
	}
	for _, e := range ints {
		if v := os.Getenv(e.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.name, err)
			}
			*e.dst = n
		}
	}

	if v := os.Getenv("SURNAMESIM_FERTILITY_MODIFIER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SURNAMESIM_FERTILITY_MODIFIER: %w", err)
		}
		config.Simulation.FertilityModifier = f
	}

	if v := os.Getenv("SURNAMESIM_HISTORY_DB"); v != "" {
		config.Output.HistoryDB = v
	}

	if v := os.Getenv("SURNAMESIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
