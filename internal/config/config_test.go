package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Incremental.IMin != 1 {
		t.Errorf("expected IMin=1, got %d", cfg.Incremental.IMin)
	}
	if cfg.Incremental.IMax != nil {
		t.Errorf("expected unbounded IMax, got %d", *cfg.Incremental.IMax)
	}
	if cfg.Incremental.IStop != "SAT" {
		t.Errorf("expected IStop=SAT, got %s", cfg.Incremental.IStop)
	}
	if cfg.Output.PlanFile != "original_plan.lp" {
		t.Errorf("expected PlanFile=original_plan.lp, got %s", cfg.Output.PlanFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("INCPLAN_LOG_LEVEL", "")
	t.Setenv("INCPLAN_SEED", "")

	path := filepath.Join(t.TempDir(), "nested", "incplan.yaml")

	imax := 12
	seed := uint64(10)
	cfg := DefaultConfig()
	cfg.Incremental.IMax = &imax
	cfg.Incremental.IStop = "UNKNOWN"
	cfg.Delay.Rate = 0.25
	cfg.Delay.Seed = &seed

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Incremental.IMax == nil || *loaded.Incremental.IMax != 12 {
		t.Errorf("expected IMax=12, got %v", loaded.Incremental.IMax)
	}
	if loaded.Incremental.IStop != "UNKNOWN" {
		t.Errorf("expected IStop=UNKNOWN, got %s", loaded.Incremental.IStop)
	}
	if loaded.Delay.Rate != 0.25 {
		t.Errorf("expected Rate=0.25, got %v", loaded.Delay.Rate)
	}
	if loaded.Delay.Seed == nil || *loaded.Delay.Seed != 10 {
		t.Errorf("expected Seed=10, got %v", loaded.Delay.Seed)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("INCPLAN_LOG_LEVEL", "")
	t.Setenv("INCPLAN_SEED", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Contradiction != "inconsistent" {
		t.Errorf("expected default contradiction predicate, got %q", cfg.Engine.Contradiction)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incplan.yaml")
	if err := os.WriteFile(path, []byte("delay:\n  rate: 1.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Delay.Rate != 1.5 {
		t.Errorf("expected Rate=1.5, got %v", cfg.Delay.Rate)
	}
	if cfg.Incremental.IMin != 1 || cfg.Output.DelayLog != "delay_atoms.lp" {
		t.Errorf("unset fields lost their defaults: %+v", cfg)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incplan.yaml")
	if err := os.WriteFile(path, []byte("incremental: [not, a, map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_Validate(t *testing.T) {
	neg := -1
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative imin", func(c *Config) { c.Incremental.IMin = -1 }},
		{"negative imax", func(c *Config) { c.Incremental.IMax = &neg }},
		{"bad istop", func(c *Config) { c.Incremental.IStop = "sat" }},
		{"min above max", func(c *Config) { c.Delay.MinDuration, c.Delay.MaxDuration = 4, 2 }},
		{"negative min", func(c *Config) { c.Delay.MinDuration = -1 }},
		{"negative agents", func(c *Config) { c.Delay.Agents = -3 }},
		{"bad timeout", func(c *Config) { c.Engine.SolveTimeout = "soon" }},
		{"negative timeout", func(c *Config) { c.Engine.SolveTimeout = "-1s" }},
		{"no plan file", func(c *Config) { c.Output.PlanFile = "" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Delay.Rate = -2
	if err := cfg.Validate(); err != nil {
		t.Errorf("negative rate means no delays and should validate: %v", err)
	}
}

func TestConfig_GetSolveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetSolveTimeout(); got != 0 {
		t.Errorf("expected no timeout, got %v", got)
	}
	cfg.Engine.SolveTimeout = "250ms"
	if got := cfg.GetSolveTimeout(); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", got)
	}
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	c := LoggingConfig{}
	if !c.IsCategoryEnabled("engine") {
		t.Error("categories are enabled by default")
	}
	c.Categories = map[string]bool{"engine": false}
	if c.IsCategoryEnabled("engine") {
		t.Error("engine should be disabled")
	}
	if !c.IsCategoryEnabled("controller") {
		t.Error("unlisted category should be enabled")
	}
}
