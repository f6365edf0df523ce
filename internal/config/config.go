package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration value that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all incplan configuration.
type Config struct {
	// Incremental loop bounds
	Incremental IncrementalConfig `yaml:"incremental"`

	// Synthetic delay injection
	Delay DelayConfig `yaml:"delay"`

	// Solver engine
	Engine EngineConfig `yaml:"engine"`

	// Output artifacts
	Output OutputConfig `yaml:"output"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// IncrementalConfig configures the solving loop.
type IncrementalConfig struct {
	IMin  int    `yaml:"imin"`
	IMax  *int   `yaml:"imax,omitempty"` // nil = unbounded
	IStop string `yaml:"istop"`          // SAT, UNSAT, UNKNOWN
}

// DelayConfig configures the random delay policy.
type DelayConfig struct {
	Rate        float64 `yaml:"rate"`
	MinDuration int     `yaml:"min_duration"`
	MaxDuration int     `yaml:"max_duration"`
	Agents      int     `yaml:"agents"`         // 0 = read from the instance header
	Seed        *uint64 `yaml:"seed,omitempty"` // nil = seeded from the clock
}

// EngineConfig configures the Mangle solver engine.
type EngineConfig struct {
	FactLimit     int    `yaml:"fact_limit"`
	SolveTimeout  string `yaml:"solve_timeout"` // "" or "0s" = no timeout
	Contradiction string `yaml:"contradiction"`
}

// OutputConfig names the files a run writes.
type OutputConfig struct {
	PlanFile     string   `yaml:"plan_file"`
	DelayLog     string   `yaml:"delay_log"`
	ConflictFile string   `yaml:"conflict_file"`
	Journal      string   `yaml:"journal"` // sqlite path, "" = off
	Show         []string `yaml:"show"`    // name/arity allow-list for the plan file
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		Incremental: IncrementalConfig{
			IMin:  1,
			IStop: "SAT",
		},
		Delay: DelayConfig{
			Rate:        0,
			MinDuration: 1,
			MaxDuration: 3,
		},
		Engine: EngineConfig{
			FactLimit:     500000,
			SolveTimeout:  "0s",
			Contradiction: "inconsistent",
		},
		Output: OutputConfig{
			PlanFile:     "original_plan.lp",
			DelayLog:     "delay_atoms.lp",
			ConflictFile: "conflict_locations.lp",
			Show:         []string{"orig/4", "conflict_location/3"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Missing file means defaults
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if level := os.Getenv("INCPLAN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if raw := os.Getenv("INCPLAN_SEED"); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: INCPLAN_SEED=%q: %w", ErrInvalid, raw, err)
		}
		c.Delay.Seed = &seed
	}
	return nil
}

// GetSolveTimeout returns the per-solve timeout, zero when disabled.
func (c *Config) GetSolveTimeout() time.Duration {
	d, err := time.ParseDuration(c.Engine.SolveTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Incremental.IMin < 0 {
		return fmt.Errorf("%w: imin must be >= 0, got %d", ErrInvalid, c.Incremental.IMin)
	}
	if c.Incremental.IMax != nil && *c.Incremental.IMax < 0 {
		return fmt.Errorf("%w: imax must be >= 0, got %d", ErrInvalid, *c.Incremental.IMax)
	}
	switch c.Incremental.IStop {
	case "SAT", "UNSAT", "UNKNOWN":
	default:
		return fmt.Errorf("%w: istop must be SAT, UNSAT or UNKNOWN, got %q", ErrInvalid, c.Incremental.IStop)
	}

	if math.IsNaN(c.Delay.Rate) || math.IsInf(c.Delay.Rate, 0) {
		return fmt.Errorf("%w: delay rate must be a finite number", ErrInvalid)
	}
	if c.Delay.MinDuration < 0 || c.Delay.MinDuration > c.Delay.MaxDuration {
		return fmt.Errorf("%w: delay durations must satisfy 0 <= min <= max, got [%d, %d]",
			ErrInvalid, c.Delay.MinDuration, c.Delay.MaxDuration)
	}
	if c.Delay.Agents < 0 {
		return fmt.Errorf("%w: agents must be >= 0, got %d", ErrInvalid, c.Delay.Agents)
	}

	if c.Engine.FactLimit < 0 {
		return fmt.Errorf("%w: fact_limit must be >= 0", ErrInvalid)
	}
	if c.Engine.SolveTimeout != "" {
		d, err := time.ParseDuration(c.Engine.SolveTimeout)
		if err != nil {
			return fmt.Errorf("%w: solve_timeout: %w", ErrInvalid, err)
		}
		if d < 0 {
			return fmt.Errorf("%w: solve_timeout must not be negative", ErrInvalid)
		}
	}

	if c.Output.PlanFile == "" {
		return fmt.Errorf("%w: plan_file is required", ErrInvalid)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: logging format must be json or console, got %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}
