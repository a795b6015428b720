// Package player drives the video source manager against wall-clock load
// deadlines: one Session per open player dialog, walking the lesson's sources
// with retry-then-advance until one plays or all are exhausted.
package player

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"academy/internal/domain/video"
)

// State is the recovery state of a session.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// UnavailableMessage is shown once every source has failed.
const UnavailableMessage = "This video is unavailable right now."

// Defaults for Options.
const (
	DefaultLoadTimeout      = 8 * time.Second
	DefaultRetryDelay       = time.Second
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultProgressStep     = 10
	maxSimulatedProgress    = 90
)

var (
	ErrNoSource        = errors.New("no playable video source")
	ErrStaleAttempt    = errors.New("attempt is no longer live")
	ErrWrongWidget     = errors.New("progress kind does not match the active widget")
	ErrNotTerminal     = errors.New("session has not failed")
	ErrClosed          = errors.New("playback session is closed")
	ErrSessionNotFound = errors.New("playback session not found")
)

// FailureKind distinguishes the two recoverable failures.
type FailureKind string

const (
	FailureTimeout FailureKind = "timeout"
	FailureError   FailureKind = "error"
)

// Failure describes one recoverable load failure, reported for diagnostics.
type Failure struct {
	SessionID   string
	Kind        FailureKind
	Attempt     uint64
	Source      video.Source
	SourceIndex int
	RetryCount  int
	Reason      string
}

// Controls is plain UI playback state; it takes no part in recovery.
type Controls struct {
	Playing  bool    `json:"playing"`
	Volume   float64 `json:"volume"`
	Muted    bool    `json:"muted"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

func defaultControls() Controls {
	return Controls{Volume: 1}
}

// Snapshot is a read-only view of a session, safe to serialize.
type Snapshot struct {
	SessionID    string           `json:"session_id"`
	State        State            `json:"state"`
	Attempt      uint64           `json:"attempt"`
	Source       *video.Source    `json:"source,omitempty"`
	SourceIndex  int              `json:"source_index"`
	SourceCount  int              `json:"source_count"`
	RetryCount   int              `json:"retry_count"`
	Player       video.PlayerType `json:"player"`
	LoadProgress int              `json:"load_progress"`
	Recovering   bool             `json:"recovering"`
	ErrorMessage string           `json:"error_message,omitempty"`
	DownloadURL  string           `json:"download_url,omitempty"`
	Controls     Controls         `json:"controls"`
}

// Hooks observe a session. They run after the session lock is released, one
// at a time and in the order the changes happened, and may be nil. Failed and
// Exhausted are not reported for an attempt that was superseded or closed
// before its hooks ran.
type Hooks struct {
	Changed   func(Snapshot)
	Failed    func(Failure)
	Exhausted func(Snapshot)
}

// Options tunes a session. Zero values take the package defaults.
type Options struct {
	LoadTimeout      time.Duration
	RetryDelay       time.Duration
	ProgressInterval time.Duration
	ProgressStep     int
	MaxRetries       int
	Clock            Clock
	Hooks            Hooks
}

func (o Options) withDefaults() Options {
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if o.ProgressStep <= 0 {
		o.ProgressStep = DefaultProgressStep
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	return o
}

// OpenInput is what the dialog knows about the video when it opens.
type OpenInput struct {
	PrimaryURL   string
	FallbackURLs []string
	MP4URLs      []string
	DownloadURL  string
}

// Session is the recovery state machine for one open player dialog.
//
// Every load attempt carries a token. A failure retires the token at once and
// the retry-delay timer carries its successor; Close retires it for good. Any
// timer or callback holding a token other than the live one is a no-op, which
// is what keeps a stale timer from touching state after teardown.
type Session struct {
	id   string
	opts Options

	mu          sync.Mutex
	manager     *video.Manager
	state       State
	attempt     uint64
	recovering  bool
	closed      bool
	progress    int
	errMsg      string
	downloadURL string
	controls    Controls
	timeout     Timer
	ticker      Timer
	delay       Timer
	lastActive  time.Time
	seq         uint64

	dispatchMu sync.Mutex
	dispatched uint64
}

// notice carries what to report once the lock is released. seq orders
// notices; attempt is the token that was live when it was built.
type notice struct {
	seq       uint64
	attempt   uint64
	changed   bool
	failure   *Failure
	exhausted bool
	snap      Snapshot
}

// changedLocked builds a sequenced notice for the current state.
func (s *Session) changedLocked() notice {
	s.seq++
	return notice{seq: s.seq, attempt: s.attempt, changed: true, snap: s.snapshotLocked()}
}

// NewSession creates an idle session.
// PRE: id identifies the dialog
// POST: State() == StateIdle, no timers pending
func NewSession(id string, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		id:         id,
		opts:       opts,
		state:      StateIdle,
		controls:   defaultControls(),
		lastActive: opts.Clock.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// LastActive returns when the session last received a call or fired a timer.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch records viewer activity that does not change state, such as a
// websocket pong from a paused dialog, so Sweep keeps the session.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.touchLocked()
	}
}

// Open builds a fresh catalog and manager and starts loading the primary source.
// Calling Open again (a new primary URL) discards the previous catalog.
// PRE: none
// POST: StateLoading with a new attempt token, or StateError and ErrNoSource when no primary URL is given
func (s *Session) Open(in OpenInput) (Snapshot, error) {
	s.mu.Lock()
	s.stopTimersLocked()
	s.attempt++
	s.closed = false
	s.touchLocked()
	s.controls = defaultControls()
	s.downloadURL = strings.TrimSpace(in.DownloadURL)

	if strings.TrimSpace(in.PrimaryURL) == "" {
		s.manager = video.NewManager(nil)
		s.state = StateError
		s.recovering = false
		s.progress = 0
		s.errMsg = UnavailableMessage
		n := s.changedLocked()
		s.mu.Unlock()
		s.dispatch(n)
		return n.snap, ErrNoSource
	}

	cfg := video.BuildConfig(in.PrimaryURL, in.FallbackURLs, in.MP4URLs)
	s.manager = video.NewManager(cfg.Sources(), video.WithMaxRetries(s.opts.MaxRetries))
	s.startLoadingLocked(s.attempt)

	cur, _ := s.manager.Current().Get()
	slog.Info("playback_opened", "session_id", s.id, "sources", s.manager.Len(), "type", cur.Type)

	n := s.changedLocked()
	s.mu.Unlock()
	s.dispatch(n)
	return n.snap, nil
}

// Ready records the widget's ready callback for the given attempt.
// PRE: attempt is the token from the latest snapshot
// POST: StateReady with timers cleared, or ErrStaleAttempt and no change
func (s *Session) Ready(attempt uint64) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLiveLocked(attempt); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if s.state == StateReady {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	if s.state != StateLoading {
		s.mu.Unlock()
		return Snapshot{}, ErrStaleAttempt
	}
	s.touchLocked()
	s.stopTimersLocked()
	s.state = StateReady
	s.progress = 100
	s.errMsg = ""
	cur, _ := s.manager.Current().Get()
	slog.Info("playback_ready", "session_id", s.id, "attempt", attempt, "source_index", s.manager.Index(), "type", cur.Type)

	n := s.changedLocked()
	s.mu.Unlock()
	s.dispatch(n)
	return n.snap, nil
}

// Fail records the widget's error callback for the given attempt and starts recovery.
// PRE: attempt is the token from the latest snapshot
// POST: recovery scheduled after RetryDelay, or ErrStaleAttempt and no change
func (s *Session) Fail(attempt uint64, reason string) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLiveLocked(attempt); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if s.state != StateLoading && s.state != StateReady {
		s.mu.Unlock()
		return Snapshot{}, ErrStaleAttempt
	}
	s.touchLocked()
	n := s.failLocked(FailureError, reason)
	s.mu.Unlock()
	s.dispatch(n)
	return n.snap, nil
}

// ReportProgress records a playback position from the active widget.
// POST: Controls.Position updated, or ErrWrongWidget when the kind belongs to the other widget
func (s *Session) ReportProgress(attempt uint64, ev ProgressEvent) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLiveLocked(attempt); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if ev.Kind != ProgressKindFor(s.manager.PreferredPlayer()) {
		s.mu.Unlock()
		return Snapshot{}, ErrWrongWidget
	}
	s.touchLocked()
	s.controls.Position = s.clampPositionLocked(ev.Seconds)
	n := s.changedLocked()
	s.mu.Unlock()
	s.dispatch(n)
	return n.snap, nil
}

// ReportDuration records the media duration reported by the widget.
func (s *Session) ReportDuration(attempt uint64, seconds float64) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkLiveLocked(attempt); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	s.touchLocked()
	if seconds < 0 {
		seconds = 0
	}
	s.controls.Duration = seconds
	s.controls.Position = s.clampPositionLocked(s.controls.Position)
	n := s.changedLocked()
	s.mu.Unlock()
	s.dispatch(n)
	return n.snap, nil
}

// Restart rewinds the catalog after a terminal failure ("try again").
// PRE: State() == StateError
// POST: StateLoading on the primary source with a fresh retry budget
func (s *Session) Restart() (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if s.state != StateError {
		s.mu.Unlock()
		return Snapshot{}, ErrNotTerminal
	}
	if s.manager == nil || s.manager.Len() == 0 {
		s.mu.Unlock()
		return Snapshot{}, ErrNoSource
	}
	s.touchLocked()
	s.manager.Reset()
	s.attempt++
	s.startLoadingLocked(s.attempt)
	slog.Info("playback_restarted", "session_id", s.id, "attempt", s.attempt)

	n := s.changedLocked()
	s.mu.Unlock()
	s.dispatch(n)
	return n.snap, nil
}

// Close cancels every pending timer and discards the catalog. Safe to call twice.
// POST: StateIdle; no timer or callback issued before Close changes state afterwards
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopTimersLocked()
	s.closed = true
	s.attempt++
	s.manager = nil
	s.state = StateIdle
	s.recovering = false
	s.progress = 0
	s.errMsg = ""
	s.downloadURL = ""
	s.controls = defaultControls()
	n := s.changedLocked()
	s.mu.Unlock()
	slog.Debug("playback_closed", "session_id", s.id)
	s.dispatch(n)
}

// Play marks the media as playing.
func (s *Session) Play() (Snapshot, error) {
	return s.updateControls(func(c *Controls) { c.Playing = true })
}

// Pause marks the media as paused.
func (s *Session) Pause() (Snapshot, error) {
	return s.updateControls(func(c *Controls) { c.Playing = false })
}

// SetVolume sets the volume, clamped to [0, 1].
func (s *Session) SetVolume(v float64) (Snapshot, error) {
	return s.updateControls(func(c *Controls) {
		c.Volume = min(max(v, 0), 1)
	})
}

// SetMuted toggles mute.
func (s *Session) SetMuted(muted bool) (Snapshot, error) {
	return s.updateControls(func(c *Controls) { c.Muted = muted })
}

// Seek moves the playback position, clamped to [0, Duration] once the duration is known.
func (s *Session) Seek(seconds float64) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	s.touchLocked()
	s.controls.Position = s.clampPositionLocked(seconds)
	n := s.changedLocked()
	s.mu.Unlock()
	s.dispatch(n)
	return n.snap, nil
}

func (s *Session) updateControls(fn func(*Controls)) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	s.touchLocked()
	fn(&s.controls)
	n := s.changedLocked()
	s.mu.Unlock()
	s.dispatch(n)
	return n.snap, nil
}

// startLoadingLocked makes token the live attempt against the current source
// and arms the load deadline and the progress ticker.
func (s *Session) startLoadingLocked(token uint64) {
	s.state = StateLoading
	s.recovering = false
	s.progress = 0
	s.errMsg = ""
	s.timeout = s.opts.Clock.AfterFunc(s.opts.LoadTimeout, func() { s.onTimeout(token) })
	s.ticker = s.opts.Clock.AfterFunc(s.opts.ProgressInterval, func() { s.onTick(token) })
}

// failLocked retires the live attempt and schedules the retry decision.
func (s *Session) failLocked(kind FailureKind, reason string) notice {
	s.stopTimersLocked()
	cur, _ := s.manager.Current().Get()
	f := Failure{
		SessionID:   s.id,
		Kind:        kind,
		Attempt:     s.attempt,
		Source:      cur,
		SourceIndex: s.manager.Index(),
		RetryCount:  s.manager.RetryCount(),
		Reason:      reason,
	}
	slog.Warn("playback_attempt_failed",
		"session_id", s.id,
		"kind", kind,
		"attempt", f.Attempt,
		"source_index", f.SourceIndex,
		"type", cur.Type,
		"reason", reason,
	)

	s.attempt++
	token := s.attempt
	s.state = StateLoading
	s.recovering = true
	s.delay = s.opts.Clock.AfterFunc(s.opts.RetryDelay, func() { s.onRetryDelay(token) })
	n := s.changedLocked()
	n.failure = &f
	return n
}

func (s *Session) onTimeout(token uint64) {
	s.mu.Lock()
	if s.closed || token != s.attempt || s.state != StateLoading || s.recovering {
		s.mu.Unlock()
		return
	}
	s.touchLocked()
	n := s.failLocked(FailureTimeout, "load timed out")
	s.mu.Unlock()
	s.dispatch(n)
}

func (s *Session) onTick(token uint64) {
	s.mu.Lock()
	if s.closed || token != s.attempt || s.state != StateLoading || s.recovering {
		s.mu.Unlock()
		return
	}
	s.progress = min(s.progress+s.opts.ProgressStep, maxSimulatedProgress)
	if s.progress < maxSimulatedProgress {
		s.ticker = s.opts.Clock.AfterFunc(s.opts.ProgressInterval, func() { s.onTick(token) })
	} else {
		s.ticker = nil
	}
	n := s.changedLocked()
	s.mu.Unlock()
	s.dispatch(n)
}

func (s *Session) onRetryDelay(token uint64) {
	s.mu.Lock()
	if s.closed || token != s.attempt || !s.recovering {
		s.mu.Unlock()
		return
	}
	s.touchLocked()
	s.delay = nil
	prevIndex := s.manager.Index()

	next, ok := s.manager.Retry().Get()
	if ok {
		if s.manager.Index() != prevIndex {
			slog.Info("playback_source_advanced", "session_id", s.id, "source_index", s.manager.Index(), "type", next.Type)
		} else {
			slog.Info("playback_source_retried", "session_id", s.id, "retry", s.manager.RetryCount(), "type", next.Type)
		}
		s.startLoadingLocked(token)
		n := s.changedLocked()
		s.mu.Unlock()
		s.dispatch(n)
		return
	}

	s.state = StateError
	s.recovering = false
	s.progress = 0
	s.errMsg = UnavailableMessage
	slog.Warn("playback_exhausted", "session_id", s.id, "sources", s.manager.Len())
	n := s.changedLocked()
	n.exhausted = true
	s.mu.Unlock()
	s.dispatch(n)
}

func (s *Session) checkLiveLocked(attempt uint64) error {
	if s.closed {
		return ErrClosed
	}
	if s.manager == nil || attempt != s.attempt || s.recovering {
		return ErrStaleAttempt
	}
	return nil
}

func (s *Session) stopTimersLocked() {
	for _, t := range []Timer{s.timeout, s.ticker, s.delay} {
		if t != nil {
			t.Stop()
		}
	}
	s.timeout, s.ticker, s.delay = nil, nil, nil
}

func (s *Session) clampPositionLocked(seconds float64) float64 {
	if seconds < 0 {
		return 0
	}
	if s.controls.Duration > 0 && seconds > s.controls.Duration {
		return s.controls.Duration
	}
	return seconds
}

func (s *Session) touchLocked() {
	s.lastActive = s.opts.Clock.Now()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		State:        s.state,
		Attempt:      s.attempt,
		LoadProgress: s.progress,
		Recovering:   s.recovering,
		ErrorMessage: s.errMsg,
		Controls:     s.controls,
		Player:       video.PlayerGeneric,
	}
	if s.state == StateError {
		snap.DownloadURL = s.downloadURL
	}
	if s.manager == nil {
		return snap
	}
	snap.SourceCount = s.manager.Len()
	snap.SourceIndex = s.manager.Index()
	snap.RetryCount = s.manager.RetryCount()
	snap.Player = s.manager.PreferredPlayer()
	if cur, ok := s.manager.Current().Get(); ok && s.state != StateError {
		cur.URL = s.manager.ObfuscatedURL()
		snap.Source = &cur
	}
	return snap
}

// dispatch runs the hooks for n. Notices older than one already dispatched
// are dropped, so observers never see state go backwards.
func (s *Session) dispatch(n notice) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if n.seq <= s.dispatched {
		return
	}
	s.dispatched = n.seq

	s.mu.Lock()
	live := !s.closed && s.attempt == n.attempt
	s.mu.Unlock()

	h := s.opts.Hooks
	if live && n.failure != nil && h.Failed != nil {
		h.Failed(*n.failure)
	}
	if n.changed && h.Changed != nil {
		h.Changed(n.snap)
	}
	if live && n.exhausted && h.Exhausted != nil {
		h.Exhausted(n.snap)
	}
}
