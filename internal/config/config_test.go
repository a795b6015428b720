package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// TestParse_Defaults tests the development defaults.
func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DBPath != "academy.db" || !cfg.IsDevelopment() {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.LoadTimeout != 8*time.Second || cfg.RetryDelay != time.Second || cfg.ProgressInterval != 500*time.Millisecond {
		t.Errorf("player timings = %s/%s/%s, want 8s/1s/500ms", cfg.LoadTimeout, cfg.RetryDelay, cfg.ProgressInterval)
	}
	if cfg.MaxRetries != 1 {
		t.Errorf("max retries = %d, want 1", cfg.MaxRetries)
	}
	if cfg.SlowQuery() != 50*time.Millisecond {
		t.Errorf("slow query = %s, want 50ms", cfg.SlowQuery())
	}
	level, _ := cfg.SlogLevel()
	if level != slog.LevelInfo {
		t.Errorf("level = %v, want info", level)
	}
}

// TestParse_Overrides tests prefixed variables and duration parsing.
func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"ACADEMY_ADDR":         ":9000",
		"ACADEMY_LOAD_TIMEOUT": "5s",
		"ACADEMY_MAX_RETRIES":  "3",
		"ACADEMY_LOG_LEVEL":    "debug",
		"ACADEMY_LOG_FORMAT":   "json",
		"ADDR":                 ":1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("addr = %q, want :9000", cfg.Addr)
	}
	if cfg.LoadTimeout != 5*time.Second || cfg.MaxRetries != 3 {
		t.Errorf("timeout/retries = %s/%d", cfg.LoadTimeout, cfg.MaxRetries)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level)
	}
}

// TestParse_Invalid tests that bad values are rejected.
func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		wantErr string
	}{
		{"bad duration", map[string]string{"ACADEMY_LOAD_TIMEOUT": "soon"}, "parse config"},
		{"timeout too long", map[string]string{"ACADEMY_LOAD_TIMEOUT": "2m"}, "LOAD_TIMEOUT"},
		{"interval not shorter than timeout", map[string]string{"ACADEMY_LOAD_TIMEOUT": "2s", "ACADEMY_PROGRESS_INTERVAL": "2s"}, "PROGRESS_INTERVAL"},
		{"negative retries", map[string]string{"ACADEMY_MAX_RETRIES": "-1"}, "MAX_RETRIES"},
		{"log format", map[string]string{"ACADEMY_LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"log level", map[string]string{"ACADEMY_LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"production without csrf key", map[string]string{"ACADEMY_ENV": "production"}, "CSRF_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.environ)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
