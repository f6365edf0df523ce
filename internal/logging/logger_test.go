package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"incplan/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		verbose bool
		want    zapcore.Level
	}{
		{"default", config.LoggingConfig{}, false, zapcore.InfoLevel},
		{"warn json", config.LoggingConfig{Level: "warn", Format: "json"}, false, zapcore.WarnLevel},
		{"upper case", config.LoggingConfig{Level: "ERROR"}, false, zapcore.ErrorLevel},
		{"verbose wins", config.LoggingConfig{Level: "error"}, true, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg, tt.verbose)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !l.Core().Enabled(tt.want) {
				t.Errorf("level %v should be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
				t.Errorf("level %v should be disabled", tt.want-1)
			}
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}, false); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(config.LoggingConfig{Format: "xml"}, false); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := New(config.LoggingConfig{Categories: map[string]bool{"solver": false}}, false); err == nil {
		t.Error("expected error for unknown category")
	}

	toggles := make(map[string]bool)
	for _, c := range AllCategories {
		toggles[string(c)] = false
	}
	if _, err := New(config.LoggingConfig{Categories: toggles}, false); err != nil {
		t.Errorf("every listed category should be accepted: %v", err)
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incplan.log")
	l, err := New(config.LoggingConfig{Format: "json", File: path}, false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("Step solved", zap.Int("step", 3))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"step":3`) {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestForCategories(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	root := zap.New(core)
	cfg := config.LoggingConfig{Categories: map[string]bool{string(CategoryEngine): false}}

	For(root, cfg, CategoryController).Info("enabled")
	For(root, cfg, CategoryEngine).Info("disabled")
	For(nil, cfg, CategoryController).Info("nil root")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "controller" {
		t.Errorf("expected logger name controller, got %q", entries[0].LoggerName)
	}
}
