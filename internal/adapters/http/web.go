package web

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"academy/internal/adapters/email"
	"academy/internal/adapters/http/middleware"
	lessonStore "academy/internal/adapters/storage/lesson"
	playbackStore "academy/internal/adapters/storage/playback"
	"academy/internal/application/orchestrators"
	"academy/internal/application/player"
)

// Stores holds all storage dependencies.
type Stores struct {
	LessonStore   lessonStore.Store
	PlaybackStore playbackStore.Store
}

// Options configures NewMux.
type Options struct {
	StaticDir      string // served under /static/ when set
	CSRFKey        []byte // 32 bytes
	SecureCookies  bool
	TrustedOrigins []string
	// DevIdentity is assumed for requests without proxy identity headers.
	// Development only.
	DevIdentity *middleware.Identity
	RateLimit   *middleware.RateLimiter
	SlowRequest time.Duration
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// AdminEmail receives "video unavailable" alerts; empty disables them.
	AdminEmail string
}

// LoadCSRFKey decodes the hex CSRF secret (32 bytes). When keyHex is empty
// outside production a random per-process key is returned with ok=false.
func LoadCSRFKey(keyHex string, production bool) (key []byte, ok bool, err error) {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, false, errors.New("CSRF key must be 64 hex characters (32 bytes)")
		}
		return key, true, nil
	}
	if production {
		return nil, false, errors.New("CSRF key is required in production")
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate CSRF key: %w", err)
	}
	return key, false, nil
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global player registry (set by NewMux)
var players *player.Registry

// Global websocket hub pushing session snapshots (set by NewMux)
var hub *wsHub

// Global email sender instance (set by SetEmailSender)
var emailSender email.Sender = email.NewNoopSender()

// alertLimiter throttles unavailable alerts per lesson.
var alertLimiter = orchestrators.NewAlertLimiter(orchestrators.DefaultAlertInterval)

// adminEmail receives unavailable alerts (set by NewMux).
var adminEmail string

// SetEmailSender sets the global email sender for the application.
func SetEmailSender(sender email.Sender) {
	emailSender = sender
}

// NewMux wires HTTP handlers for the app.
// PRE: s and registry are non-nil; opts.CSRFKey is 32 bytes
func NewMux(s *Stores, registry *player.Registry, opts Options) http.Handler {
	stores = s
	players = registry
	adminEmail = opts.AdminEmail
	alertLimiter = orchestrators.NewAlertLimiter(orchestrators.DefaultAlertInterval)
	if hub != nil {
		hub.Close()
	}
	hub = newWSHub()

	mux := http.NewServeMux()
	if opts.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	registerRoutes(mux)

	limiter := opts.RateLimit
	if limiter == nil {
		limiter = middleware.NewRateLimiter(20, 40)
	}

	// Recover -> Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, opts.SecureCookies, opts.TrustedOrigins),
		middleware.Auth(opts.DevIdentity),
		middleware.RateLimit(limiter),
		middleware.Timing(opts.SlowRequest),
		middleware.Recover,
	)
}

// Shutdown disconnects every websocket client.
func Shutdown() {
	if hub != nil {
		hub.Close()
	}
}

// handle registers h for pattern with route-labelled metrics.
func handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, middleware.Route(pattern, h))
}

func registerRoutes(mux *http.ServeMux) {
	handle(mux, "GET /healthz", handleHealthz)

	handle(mux, "GET /lessons/{id}", handleLessonPage)
	handle(mux, "GET /api/lessons", handleListLessons)
	handle(mux, "POST /api/lessons", requireRole(handleCreateLesson, middleware.RoleCoach, middleware.RoleAdmin))
	handle(mux, "POST /api/lessons/import", requireRole(handleImportLessons, middleware.RoleAdmin))

	handle(mux, "POST /api/playback", requireRole(handleOpenPlayback))
	handle(mux, "GET /api/playback/{id}", requireRole(handleGetPlayback))
	handle(mux, "DELETE /api/playback/{id}", requireRole(handleClosePlayback))
	handle(mux, "POST /api/playback/{id}/ready", requireRole(handlePlaybackReady))
	handle(mux, "POST /api/playback/{id}/error", requireRole(handlePlaybackError))
	handle(mux, "POST /api/playback/{id}/progress", requireRole(handlePlaybackProgress))
	handle(mux, "POST /api/playback/{id}/duration", requireRole(handlePlaybackDuration))
	handle(mux, "POST /api/playback/{id}/controls", requireRole(handlePlaybackControls))
	handle(mux, "POST /api/playback/{id}/restart", requireRole(handlePlaybackRestart))
	handle(mux, "GET /api/playback/{id}/ws", requireRole(handlePlaybackWS))

	handle(mux, "GET /api/admin/playback-health", requireRole(handlePlaybackHealth, middleware.RoleAdmin))
	handle(mux, "GET /api/admin/lessons/{id}/events", requireRole(handleLessonEvents, middleware.RoleAdmin, middleware.RoleCoach))
}

func requireRole(h http.HandlerFunc, roles ...string) http.HandlerFunc {
	return middleware.RequireRole(roles...)(h).ServeHTTP
}
