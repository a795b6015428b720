package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	emailPkg "academy/internal/adapters/email"
	web "academy/internal/adapters/http"
	"academy/internal/adapters/http/middleware"
	"academy/internal/adapters/metrics"
	"academy/internal/adapters/storage"
	lessonStore "academy/internal/adapters/storage/lesson"
	playbackStore "academy/internal/adapters/storage/playback"
	"academy/internal/application/orchestrators"
	"academy/internal/application/player"
	"academy/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.MigrateDB(ctx, db); err != nil {
		return err
	}
	slog.Info("database_ready", "path", cfg.DBPath, "schema", storage.LatestSchemaVersion())

	timedDB := storage.NewTimedDB(db, cfg.SlowQuery())
	stores := &web.Stores{
		LessonStore:   lessonStore.NewSQLiteStore(timedDB),
		PlaybackStore: playbackStore.NewSQLiteStore(timedDB),
	}

	if cfg.IsDevelopment() {
		if err := orchestrators.ExecuteSeedLessons(ctx, orchestrators.SeedLessonsDeps{
			LessonStore: stores.LessonStore,
			Now:         func() time.Time { return time.Now().UTC() },
		}); err != nil {
			return err
		}
	}

	registry := player.NewRegistry(player.Options{
		LoadTimeout:      cfg.LoadTimeout,
		RetryDelay:       cfg.RetryDelay,
		ProgressInterval: cfg.ProgressInterval,
		MaxRetries:       cfg.MaxRetries,
	})
	defer registry.CloseAll()
	player.StartSweeper(ctx, registry, sweepInterval, cfg.SessionIdle)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg, func() float64 { return float64(registry.Len()) })

	web.SetEmailSender(emailPkg.NewSender(cfg.ResendKey, cfg.ResendFrom))
	if cfg.ResendKey == "" && !cfg.IsDevelopment() {
		slog.Warn("email_disabled", "reason", "ACADEMY_RESEND_KEY is not set")
	}

	csrfKey, persistent, err := web.LoadCSRFKey(cfg.CSRFKey, !cfg.IsDevelopment())
	if err != nil {
		return err
	}
	if !persistent {
		slog.Warn("csrf_key_ephemeral", "reason", "ACADEMY_CSRF_KEY is not set; tokens reset on restart")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	limiter.StartCleanup(ctx)

	var devIdentity *middleware.Identity
	if cfg.IsDevelopment() {
		devIdentity = &middleware.Identity{UserID: "dev-admin", Email: "admin@academy.local", Role: middleware.RoleAdmin}
	}

	handler := web.NewMux(stores, registry, web.Options{
		StaticDir:      cfg.StaticDir,
		CSRFKey:        csrfKey,
		SecureCookies:  !cfg.IsDevelopment(),
		TrustedOrigins: cfg.TrustedOrigins,
		DevIdentity:    devIdentity,
		RateLimit:      limiter,
		SlowRequest:    cfg.SlowRequest(),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminEmail:     cfg.AdminEmail,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", "version", version, "addr", cfg.Addr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("server_stopping")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	web.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server_stopped", "sessions_open", registry.Len())
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
