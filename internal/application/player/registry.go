package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns the live sessions of this process, one per open dialog.
// Sessions are never shared between dialogs.
type Registry struct {
	opts  Options
	newID func() string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry whose sessions use opts.
// opts.Hooks is ignored; hooks are supplied per session on Open.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts.withDefaults(),
		newID:    func() string { return uuid.New().String() },
		sessions: make(map[string]*Session),
	}
}

// Open creates a session for a newly opened dialog and starts loading.
// PRE: in.PrimaryURL is set
// POST: the session is registered and loading, or ErrNoSource and nothing is registered
func (r *Registry) Open(in OpenInput, hooks Hooks) (*Session, Snapshot, error) {
	opts := r.opts
	opts.Hooks = hooks
	s := NewSession(r.newID(), opts)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	snap, err := s.Open(in)
	if err != nil {
		r.Close(s.ID())
		return nil, snap, err
	}
	return s, snap, nil
}

// Get returns a live session by ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close tears down and forgets a session.
// POST: the session's timers are cancelled; later Get calls return ErrSessionNotFound
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than maxIdle, which covers dialogs
// whose browser went away without closing them. A paused dialog stays alive
// through Touch calls from its websocket keepalive.
// POST: returns the number of sessions closed
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.opts.Clock.Now().Add(-maxIdle)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		slog.Info("playback_sessions_swept", "closed", len(stale))
	}
	return len(stale)
}

// CloseAll tears down every session, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

// StartSweeper periodically sweeps idle sessions until ctx is done.
// PRE: interval > 0
// POST: worker runs in the background until ctx is cancelled
func StartSweeper(ctx context.Context, r *Registry, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.Sweep(maxIdle)
			case <-ctx.Done():
				slog.Info("playback_sweeper_stopped")
				return
			}
		}
	}()
}
