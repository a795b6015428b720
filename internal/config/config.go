package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "ACADEMY_"

// Bounds on the player timings an operator may configure.
const (
	MinLoadTimeout = time.Second
	MaxLoadTimeout = 60 * time.Second
	MaxRetryDelay  = 30 * time.Second
)

// Config is the runtime configuration of the academy server and CLI.
type Config struct {
	Addr   string `env:"ADDR" envDefault:":8080"`
	Env    string `env:"ENV" envDefault:"development"`
	DBPath string `env:"DB_PATH" envDefault:"academy.db"`

	// StaticDir is served under /static/; empty disables it.
	StaticDir      string   `env:"STATIC_DIR" envDefault:"static"`
	TrustedOrigins []string `env:"TRUSTED_ORIGINS" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat is "text" or "json".
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	CSRFKey    string `env:"CSRF_KEY"`
	ResendKey  string `env:"RESEND_KEY"`
	ResendFrom string `env:"RESEND_FROM" envDefault:"Academy <noreply@academy.example>"`
	AdminEmail string `env:"ADMIN_EMAIL"`

	LoadTimeout      time.Duration `env:"LOAD_TIMEOUT" envDefault:"8s"`
	RetryDelay       time.Duration `env:"RETRY_DELAY" envDefault:"1s"`
	ProgressInterval time.Duration `env:"PROGRESS_INTERVAL" envDefault:"500ms"`
	MaxRetries       int           `env:"MAX_RETRIES" envDefault:"1"`
	SessionIdle      time.Duration `env:"SESSION_IDLE" envDefault:"30m"`

	RateLimit float64 `env:"RATE_LIMIT" envDefault:"20"`
	RateBurst int     `env:"RATE_BURST" envDefault:"40"`

	SlowQueryMs   int `env:"SLOW_QUERY_MS" envDefault:"50"`
	SlowRequestMs int `env:"SLOW_REQUEST_MS" envDefault:"200"`
}

// Load reads an optional .env file from the working directory and parses
// the process environment.
// POST: returns a validated Config or the first problem found
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return Parse(nil)
}

// Parse builds a Config from environ (variable name to value, prefix
// included). A nil map reads the process environment.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: Prefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the server runs without production safeguards.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate checks the configuration's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("ADDR cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.LoadTimeout < MinLoadTimeout || c.LoadTimeout > MaxLoadTimeout {
		return fmt.Errorf("LOAD_TIMEOUT must be between %s and %s", MinLoadTimeout, MaxLoadTimeout)
	}
	if c.RetryDelay < 0 || c.RetryDelay > MaxRetryDelay {
		return fmt.Errorf("RETRY_DELAY must be between 0 and %s", MaxRetryDelay)
	}
	if c.ProgressInterval <= 0 || c.ProgressInterval >= c.LoadTimeout {
		return errors.New("PROGRESS_INTERVAL must be positive and shorter than LOAD_TIMEOUT")
	}
	if c.MaxRetries < 0 {
		return errors.New("MAX_RETRIES cannot be negative")
	}
	if c.SessionIdle <= 0 {
		return errors.New("SESSION_IDLE must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("RATE_LIMIT and RATE_BURST must be positive")
	}
	if !c.IsDevelopment() && len(c.CSRFKey) != 64 {
		return errors.New("CSRF_KEY must be 64 hex characters outside development")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q is not a slog level", c.LogLevel)
	}
	return level, nil
}

// SlowQuery is the TimedDB warning threshold.
func (c Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMs) * time.Millisecond
}

// SlowRequest is the Timing middleware warning threshold.
func (c Config) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMs) * time.Millisecond
}
