// Package logging builds the zap loggers used across incplan.
//
// One root logger is built from config. Subsystems log through named children
// obtained with For, and a category switched off in config gets a no-op logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"incplan/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // CLI startup, config resolution
	CategoryController Category = "controller" // Incremental loop progress
	CategoryEngine     Category = "engine"     // Mangle engine grounding and solving
	CategoryDelay      Category = "delay"      // Delay injection
	CategoryStore      Category = "store"      // Run journal
	CategoryConflict   Category = "conflict"   // Conflict detection
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryBoot,
	CategoryController,
	CategoryEngine,
	CategoryDelay,
	CategoryStore,
	CategoryConflict,
}

// New builds the root logger. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	switch cfg.Format {
	case "json":
		zc = zap.NewProductionConfig()
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	for name := range cfg.Categories {
		if !knownCategory(name) {
			return nil, fmt.Errorf("unknown log category %q", name)
		}
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func knownCategory(name string) bool {
	for _, c := range AllCategories {
		if string(c) == name {
			return true
		}
	}
	return false
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("unknown log level %q: %w", s, err)
	}
	return level, nil
}

// For returns the named child logger for a category, or a no-op logger when the
// category is disabled.
func For(l *zap.Logger, cfg config.LoggingConfig, category Category) *zap.Logger {
	if l == nil || !cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.Named(string(category))
}
