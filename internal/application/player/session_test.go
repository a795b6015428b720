package player

import (
	"errors"
	"sync"
	"testing"
	"time"

	"academy/internal/domain/video"
)

const (
	ytPrimary  = "https://www.youtube.com/watch?v=abc12345678&si=TRACKING"
	hlsBackup  = "https://cdn.example.com/armbar/master.m3u8"
	mp4Primary = "https://cdn.example.com/armbar_720p.mp4"
	mp4Backup  = "https://cdn.example.com/armbar_480p.mp4"
)

// recorder captures hook invocations.
type recorder struct {
	mu        sync.Mutex
	changes   []Snapshot
	failures  []Failure
	exhausted []Snapshot
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		Changed: func(s Snapshot) {
			r.mu.Lock()
			r.changes = append(r.changes, s)
			r.mu.Unlock()
		},
		Failed: func(f Failure) {
			r.mu.Lock()
			r.failures = append(r.failures, f)
			r.mu.Unlock()
		},
		Exhausted: func(s Snapshot) {
			r.mu.Lock()
			r.exhausted = append(r.exhausted, s)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) changeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func newTestSession(clock *manualClock, rec *recorder) *Session {
	return NewSession("session-1", Options{
		LoadTimeout:      8 * time.Second,
		RetryDelay:       time.Second,
		ProgressInterval: 500 * time.Millisecond,
		ProgressStep:     10,
		MaxRetries:       1,
		Clock:            clock,
		Hooks:            rec.hooks(),
	})
}

// TestSession_Open_StartsLoading tests that opening arms the deadline and ticker.
func TestSession_Open_StartsLoading(t *testing.T) {
	clock := newManualClock()
	s := newTestSession(clock, &recorder{})

	snap, err := s.Open(OpenInput{PrimaryURL: ytPrimary, FallbackURLs: []string{hlsBackup}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateLoading {
		t.Errorf("state = %s, want loading", snap.State)
	}
	if snap.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", snap.Attempt)
	}
	if snap.Player != video.PlayerNativeEmbed {
		t.Errorf("player = %s, want native-embed", snap.Player)
	}
	if snap.Source == nil || snap.Source.URL != "https://www.youtube.com/watch?v=abc12345678" {
		t.Errorf("source = %+v, want normalized YouTube URL", snap.Source)
	}
	if snap.SourceCount != 2 {
		t.Errorf("source count = %d, want 2", snap.SourceCount)
	}
	if clock.Pending() != 2 {
		t.Errorf("pending timers = %d, want 2 (timeout + progress)", clock.Pending())
	}
}

// TestSession_Open_NoPrimary tests that a dialog without a URL fails terminally.
func TestSession_Open_NoPrimary(t *testing.T) {
	clock := newManualClock()
	s := newTestSession(clock, &recorder{})

	snap, err := s.Open(OpenInput{PrimaryURL: "  ", DownloadURL: "https://cdn.example.com/dl.mp4"})
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("err = %v, want ErrNoSource", err)
	}
	if snap.State != StateError || snap.ErrorMessage != UnavailableMessage {
		t.Errorf("snapshot = %+v, want terminal error", snap)
	}
	if snap.DownloadURL != "https://cdn.example.com/dl.mp4" {
		t.Errorf("download URL = %q", snap.DownloadURL)
	}
	if clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", clock.Pending())
	}
	if _, err := s.Restart(); !errors.Is(err, ErrNoSource) {
		t.Errorf("restart err = %v, want ErrNoSource", err)
	}
}

// TestSession_SimulatedProgress_CapsAt90 tests the cosmetic loading ticker.
func TestSession_SimulatedProgress_CapsAt90(t *testing.T) {
	clock := newManualClock()
	s := newTestSession(clock, &recorder{})
	s.Open(OpenInput{PrimaryURL: mp4Primary})

	clock.Advance(500 * time.Millisecond)
	if got := s.Snapshot().LoadProgress; got != 10 {
		t.Errorf("progress = %d, want 10", got)
	}
	clock.Advance(7 * time.Second)
	if got := s.Snapshot().LoadProgress; got != 90 {
		t.Errorf("progress = %d, want 90", got)
	}
	if clock.Pending() != 1 {
		t.Errorf("pending timers = %d, want 1 (ticker stops at 90)", clock.Pending())
	}
}

// TestSession_Ready_ClearsTimers tests the ready callback.
func TestSession_Ready_ClearsTimers(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestSession(clock, rec)
	snap, _ := s.Open(OpenInput{PrimaryURL: mp4Primary})

	snap, err := s.Ready(snap.Attempt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateReady || snap.LoadProgress != 100 {
		t.Errorf("snapshot = %+v, want ready at 100%%", snap)
	}
	if clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", clock.Pending())
	}

	before := rec.changeCount()
	clock.Advance(time.Minute)
	if rec.changeCount() != before {
		t.Error("expected no state change after ready")
	}

	// Ready twice for the same attempt is harmless.
	if _, err := s.Ready(snap.Attempt); err != nil {
		t.Errorf("second ready err = %v", err)
	}
}

// TestSession_Timeout_RetriesSameSource tests that a timeout spends the in-place retry first.
func TestSession_Timeout_RetriesSameSource(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestSession(clock, rec)
	s.Open(OpenInput{PrimaryURL: mp4Primary, MP4URLs: []string{mp4Backup}})

	clock.Advance(8 * time.Second)
	snap := s.Snapshot()
	if !snap.Recovering || snap.State != StateLoading {
		t.Fatalf("snapshot = %+v, want recovering", snap)
	}
	if len(rec.failures) != 1 || rec.failures[0].Kind != FailureTimeout {
		t.Fatalf("failures = %+v, want one timeout", rec.failures)
	}

	clock.Advance(time.Second)
	snap = s.Snapshot()
	if snap.Recovering || snap.SourceIndex != 0 || snap.RetryCount != 1 {
		t.Errorf("snapshot = %+v, want retry of source 0", snap)
	}
	if snap.LoadProgress != 0 {
		t.Errorf("progress = %d, want reset to 0", snap.LoadProgress)
	}
}

// TestSession_StaleCallbacks tests that callbacks for retired attempts are rejected.
func TestSession_StaleCallbacks(t *testing.T) {
	clock := newManualClock()
	s := newTestSession(clock, &recorder{})
	first, _ := s.Open(OpenInput{PrimaryURL: mp4Primary, MP4URLs: []string{mp4Backup}})

	if _, err := s.Fail(first.Attempt, "decode error"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Ready(first.Attempt); !errors.Is(err, ErrStaleAttempt) {
		t.Errorf("ready on retired attempt err = %v, want ErrStaleAttempt", err)
	}
	// The successor token is not live until the retry delay elapses.
	if _, err := s.Fail(first.Attempt+1, "again"); !errors.Is(err, ErrStaleAttempt) {
		t.Errorf("fail while recovering err = %v, want ErrStaleAttempt", err)
	}

	clock.Advance(time.Second)
	live := s.Snapshot()
	if live.Attempt != first.Attempt+1 {
		t.Fatalf("attempt = %d, want %d", live.Attempt, first.Attempt+1)
	}
	if _, err := s.Ready(live.Attempt); err != nil {
		t.Errorf("ready on live attempt err = %v", err)
	}
}

// TestSession_TimeoutThenError_AdvancesToFallback covers a YouTube primary
// failing by timeout and then by explicit error with one fallback configured.
func TestSession_TimeoutThenError_AdvancesToFallback(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestSession(clock, rec)
	s.Open(OpenInput{PrimaryURL: ytPrimary, FallbackURLs: []string{hlsBackup}})

	clock.Advance(8 * time.Second) // timeout on attempt 1
	clock.Advance(time.Second)     // retry delay: YouTube retry budget spent
	snap := s.Snapshot()
	if snap.SourceIndex != 0 || snap.RetryCount != 1 || snap.State != StateLoading {
		t.Fatalf("after first failure snapshot = %+v", snap)
	}

	if _, err := s.Fail(snap.Attempt, "embed error 150"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(time.Second)

	snap = s.Snapshot()
	if snap.SourceIndex != 1 || snap.RetryCount != 0 {
		t.Errorf("snapshot = %+v, want fallback with fresh retry budget", snap)
	}
	if snap.Source == nil || snap.Source.URL != hlsBackup {
		t.Errorf("source = %+v, want %s", snap.Source, hlsBackup)
	}
	if snap.Player != video.PlayerGeneric {
		t.Errorf("player = %s, want generic-player", snap.Player)
	}
	if snap.State != StateLoading || snap.Recovering {
		t.Errorf("state = %s recovering=%v, want fresh loading", snap.State, snap.Recovering)
	}
	if clock.Pending() != 2 {
		t.Errorf("pending timers = %d, want loading timers restarted", clock.Pending())
	}
	if len(rec.failures) != 2 || rec.failures[0].Kind != FailureTimeout || rec.failures[1].Kind != FailureError {
		t.Errorf("failures = %+v, want timeout then error", rec.failures)
	}

	// The restarted deadline is measured from the advance, not from open.
	clock.Advance(7 * time.Second)
	if s.Snapshot().Recovering {
		t.Error("fallback timed out early")
	}
	clock.Advance(time.Second)
	if !s.Snapshot().Recovering {
		t.Error("expected fallback to time out 8s after it started")
	}
}

// TestSession_AllSourcesFail_ExhaustsOnce tests the terminal error path.
func TestSession_AllSourcesFail_ExhaustsOnce(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestSession(clock, rec)
	s.Open(OpenInput{
		PrimaryURL:  mp4Primary,
		MP4URLs:     []string{mp4Backup},
		DownloadURL: "https://cdn.example.com/armbar_download.mp4",
	})

	clock.Advance(time.Hour)

	snap := s.Snapshot()
	if snap.State != StateError {
		t.Fatalf("state = %s, want error", snap.State)
	}
	if snap.ErrorMessage != UnavailableMessage {
		t.Errorf("message = %q", snap.ErrorMessage)
	}
	if snap.DownloadURL != "https://cdn.example.com/armbar_download.mp4" {
		t.Errorf("download URL = %q", snap.DownloadURL)
	}
	if snap.Source != nil {
		t.Errorf("source = %+v, want none after exhaustion", snap.Source)
	}
	if len(rec.exhausted) != 1 {
		t.Errorf("exhausted hooks = %d, want exactly 1", len(rec.exhausted))
	}
	// Two sources, one in-place retry each.
	if len(rec.failures) != 4 {
		t.Errorf("failures = %d, want 4", len(rec.failures))
	}
	if clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", clock.Pending())
	}

	before := rec.changeCount()
	fired := clock.fired
	clock.Advance(24 * time.Hour)
	if rec.changeCount() != before || clock.fired != fired {
		t.Error("expected no timer or state change after exhaustion")
	}
	if _, err := s.Fail(snap.Attempt, "late"); !errors.Is(err, ErrStaleAttempt) {
		t.Errorf("late fail err = %v, want ErrStaleAttempt", err)
	}
	if len(rec.exhausted) != 1 {
		t.Errorf("exhausted hooks = %d after late callbacks, want 1", len(rec.exhausted))
	}
}

// TestSession_Restart_RewindsCatalog tests "try again" after exhaustion.
func TestSession_Restart_RewindsCatalog(t *testing.T) {
	clock := newManualClock()
	s := newTestSession(clock, &recorder{})
	snap, _ := s.Open(OpenInput{PrimaryURL: mp4Primary, MP4URLs: []string{mp4Backup}})

	if _, err := s.Restart(); !errors.Is(err, ErrNotTerminal) {
		t.Errorf("restart while loading err = %v, want ErrNotTerminal", err)
	}

	clock.Advance(time.Hour)
	snap, err := s.Restart()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateLoading || snap.SourceIndex != 0 || snap.RetryCount != 0 {
		t.Errorf("snapshot = %+v, want loading from the primary", snap)
	}
	if snap.Source == nil || snap.Source.URL != mp4Primary {
		t.Errorf("source = %+v, want primary", snap.Source)
	}
}

// TestSession_Close_MidTimeout tests that a pending deadline cannot fire after close.
func TestSession_Close_MidTimeout(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestSession(clock, rec)
	s.Open(OpenInput{PrimaryURL: mp4Primary})
	s.Play()
	s.SetVolume(0.3)

	clock.Advance(3 * time.Second)
	s.Close()
	closed := s.Snapshot()
	before := rec.changeCount()

	clock.Advance(time.Hour)
	if rec.changeCount() != before {
		t.Error("expected no state change after close")
	}
	if len(rec.failures) != 0 {
		t.Errorf("failures = %d, want 0", len(rec.failures))
	}
	if got := s.Snapshot(); got != closed {
		t.Errorf("snapshot changed after close: %+v", got)
	}
	if closed.State != StateIdle {
		t.Errorf("state = %s, want idle", closed.State)
	}
	if closed.Controls != defaultControls() {
		t.Errorf("controls = %+v, want defaults", closed.Controls)
	}
	if _, err := s.Ready(closed.Attempt); !errors.Is(err, ErrClosed) {
		t.Errorf("ready after close err = %v, want ErrClosed", err)
	}
	s.Close()
}

// TestSession_Close_DuringRetryDelay tests that the retry timer is cancelled on close.
func TestSession_Close_DuringRetryDelay(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestSession(clock, rec)
	snap, _ := s.Open(OpenInput{PrimaryURL: mp4Primary})
	s.Fail(snap.Attempt, "network")
	s.Close()
	before := rec.changeCount()

	clock.Advance(time.Hour)
	if rec.changeCount() != before {
		t.Error("retry delay fired after close")
	}
	if len(rec.exhausted) != 0 {
		t.Error("exhausted after close")
	}
}

// TestSession_Reopen_ResetsControls tests that reopening starts from defaults.
func TestSession_Reopen_ResetsControls(t *testing.T) {
	clock := newManualClock()
	s := newTestSession(clock, &recorder{})
	first, _ := s.Open(OpenInput{PrimaryURL: mp4Primary})
	s.Ready(first.Attempt)
	s.SetMuted(true)
	s.ReportDuration(first.Attempt, 120)
	s.Seek(60)

	snap, err := s.Open(OpenInput{PrimaryURL: hlsBackup})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Controls != defaultControls() {
		t.Errorf("controls = %+v, want defaults", snap.Controls)
	}
	if snap.Attempt <= first.Attempt {
		t.Errorf("attempt = %d, want > %d", snap.Attempt, first.Attempt)
	}
	if _, err := s.Ready(first.Attempt); !errors.Is(err, ErrStaleAttempt) {
		t.Errorf("ready for previous open err = %v, want ErrStaleAttempt", err)
	}
}

// TestSession_FailWhilePlaying_Recovers tests mid-playback errors.
func TestSession_FailWhilePlaying_Recovers(t *testing.T) {
	clock := newManualClock()
	s := newTestSession(clock, &recorder{})
	snap, _ := s.Open(OpenInput{PrimaryURL: hlsBackup})
	s.Ready(snap.Attempt)

	snap, err := s.Fail(snap.Attempt, "stalled")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.Recovering {
		t.Error("expected recovery after mid-playback failure")
	}
	clock.Advance(time.Second)
	if got := s.Snapshot(); got.State != StateLoading || got.RetryCount != 1 {
		t.Errorf("snapshot = %+v, want in-place retry", got)
	}
}

// TestSession_ReportProgress_TaggedByWidget tests the progress variant guard.
func TestSession_ReportProgress_TaggedByWidget(t *testing.T) {
	clock := newManualClock()
	s := newTestSession(clock, &recorder{})
	snap, _ := s.Open(OpenInput{PrimaryURL: ytPrimary})
	s.Ready(snap.Attempt)

	if _, err := s.ReportProgress(snap.Attempt, ProgressEvent{Kind: ProgressScrubber, Seconds: 5}); !errors.Is(err, ErrWrongWidget) {
		t.Errorf("scrubber progress on embed err = %v, want ErrWrongWidget", err)
	}
	got, err := s.ReportProgress(snap.Attempt, NewProgressEvent(video.PlayerNativeEmbed, 12.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Controls.Position != 12.5 {
		t.Errorf("position = %v, want 12.5", got.Controls.Position)
	}
}

// TestSession_Controls_Clamp tests volume and seek bounds.
func TestSession_Controls_Clamp(t *testing.T) {
	clock := newManualClock()
	s := newTestSession(clock, &recorder{})
	snap, _ := s.Open(OpenInput{PrimaryURL: mp4Primary})
	s.ReportDuration(snap.Attempt, 90)

	if got, _ := s.SetVolume(1.7); got.Controls.Volume != 1 {
		t.Errorf("volume = %v, want 1", got.Controls.Volume)
	}
	if got, _ := s.SetVolume(-1); got.Controls.Volume != 0 {
		t.Errorf("volume = %v, want 0", got.Controls.Volume)
	}
	if got, _ := s.Seek(500); got.Controls.Position != 90 {
		t.Errorf("position = %v, want 90", got.Controls.Position)
	}
	if got, _ := s.Seek(-3); got.Controls.Position != 0 {
		t.Errorf("position = %v, want 0", got.Controls.Position)
	}
	if got, _ := s.Play(); !got.Controls.Playing {
		t.Error("expected playing")
	}
	if got, _ := s.Pause(); got.Controls.Playing {
		t.Error("expected paused")
	}
}

// TestOptions_Defaults tests zero-value options.
func TestOptions_Defaults(t *testing.T) {
	o := Options{MaxRetries: -4}.withDefaults()
	if o.LoadTimeout != DefaultLoadTimeout || o.RetryDelay != DefaultRetryDelay {
		t.Errorf("durations = %v/%v", o.LoadTimeout, o.RetryDelay)
	}
	if o.ProgressInterval != DefaultProgressInterval || o.ProgressStep != DefaultProgressStep {
		t.Errorf("progress = %v/%d", o.ProgressInterval, o.ProgressStep)
	}
	if o.MaxRetries != 0 {
		t.Errorf("max retries = %d, want 0", o.MaxRetries)
	}
	if _, ok := o.Clock.(RealClock); !ok {
		t.Errorf("clock = %T, want RealClock", o.Clock)
	}
}

// gatedRecorder records hook calls in order and parks the first Changed call
// whose snapshot matches until release is closed.
type gatedRecorder struct {
	match   func(Snapshot) bool
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	events []string
}

func newGatedRecorder(match func(Snapshot) bool) *gatedRecorder {
	return &gatedRecorder{match: match, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRecorder) record(event string) {
	g.mu.Lock()
	g.events = append(g.events, event)
	g.mu.Unlock()
}

func (g *gatedRecorder) hooks() Hooks {
	return Hooks{
		Changed: func(s Snapshot) {
			if g.match(s) {
				g.once.Do(func() {
					close(g.entered)
					<-g.release
				})
			}
			g.record("changed:" + string(s.State))
		},
		Failed:    func(f Failure) { g.record("failed:" + string(f.Kind)) },
		Exhausted: func(Snapshot) { g.record("exhausted") },
	}
}

func (g *gatedRecorder) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.events...)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func goDone(f func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	return done
}

// TestSession_Hooks_TickDoesNotOverwriteReady tests that a progress tick whose
// hook is still running cannot publish after the ready it lost the race to.
func TestSession_Hooks_TickDoesNotOverwriteReady(t *testing.T) {
	clock := newManualClock()
	g := newGatedRecorder(func(s Snapshot) bool { return s.State == StateLoading && s.LoadProgress == 10 })
	s := NewSession("session-1", Options{
		LoadTimeout:      8 * time.Second,
		RetryDelay:       time.Second,
		ProgressInterval: 500 * time.Millisecond,
		Clock:            clock,
		Hooks:            g.hooks(),
	})
	snap, _ := s.Open(OpenInput{PrimaryURL: mp4Primary})

	ticked := goDone(func() { clock.Advance(500 * time.Millisecond) })
	<-g.entered
	readied := goDone(func() { s.Ready(snap.Attempt) })
	waitUntil(t, func() bool { return s.Snapshot().State == StateReady })
	close(g.release)
	<-ticked
	<-readied

	events := g.recorded()
	if last := events[len(events)-1]; last != "changed:ready" {
		t.Errorf("hook order = %v, want ready published last", events)
	}
}

// TestSession_Hooks_FailureSupersededByClose tests that a timeout whose hooks
// had not run yet is not reported once the dialog is closed.
func TestSession_Hooks_FailureSupersededByClose(t *testing.T) {
	clock := newManualClock()
	g := newGatedRecorder(func(s Snapshot) bool { return s.Controls.Playing })
	s := NewSession("session-1", Options{
		LoadTimeout:      8 * time.Second,
		RetryDelay:       time.Second,
		ProgressInterval: time.Minute,
		Clock:            clock,
		Hooks:            g.hooks(),
	})
	s.Open(OpenInput{PrimaryURL: mp4Primary})

	played := goDone(func() { s.Play() })
	<-g.entered
	timedOut := goDone(func() { clock.Advance(8 * time.Second) })
	waitUntil(t, func() bool { return s.Snapshot().Recovering })
	closed := goDone(s.Close)
	waitUntil(t, func() bool { return s.Snapshot().State == StateIdle })
	close(g.release)
	<-played
	<-timedOut
	<-closed

	events := g.recorded()
	for _, e := range events {
		if e == "failed:timeout" {
			t.Errorf("hook order = %v, want no failure reported for a closed dialog", events)
		}
	}
	if last := events[len(events)-1]; last != "changed:idle" {
		t.Errorf("hook order = %v, want idle published last", events)
	}
}

// TestSession_Hooks_FailureRunningDuringClose tests that close publishes after
// a failure hook already in progress, never before it.
func TestSession_Hooks_FailureRunningDuringClose(t *testing.T) {
	clock := newManualClock()
	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	s := NewSession("session-1", Options{
		LoadTimeout:      8 * time.Second,
		RetryDelay:       time.Second,
		ProgressInterval: time.Minute,
		Clock:            clock,
		Hooks: Hooks{
			Changed: func(snap Snapshot) { record("changed:" + string(snap.State)) },
			Failed: func(f Failure) {
				close(entered)
				<-release
				record("failed:" + string(f.Kind))
			},
		},
	})
	s.Open(OpenInput{PrimaryURL: mp4Primary})

	timedOut := goDone(func() { clock.Advance(8 * time.Second) })
	<-entered
	closed := goDone(s.Close)
	waitUntil(t, func() bool { return s.Snapshot().State == StateIdle })
	close(release)
	<-timedOut
	<-closed

	mu.Lock()
	defer mu.Unlock()
	want := []string{"changed:loading", "failed:timeout", "changed:loading", "changed:idle"}
	if len(events) != len(want) {
		t.Fatalf("hook order = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("hook order = %v, want %v", events, want)
		}
	}
}

// TestSession_Hooks_ExhaustionSupersededByClose tests that closing the dialog
// before the exhaustion hooks run suppresses the unavailable report.
func TestSession_Hooks_ExhaustionSupersededByClose(t *testing.T) {
	clock := newManualClock()
	g := newGatedRecorder(func(s Snapshot) bool { return s.Controls.Playing })
	s := NewSession("session-1", Options{
		LoadTimeout:      8 * time.Second,
		RetryDelay:       time.Second,
		ProgressInterval: time.Minute,
		MaxRetries:       0,
		Clock:            clock,
		Hooks:            g.hooks(),
	})
	snap, _ := s.Open(OpenInput{PrimaryURL: mp4Primary})
	if _, err := s.Fail(snap.Attempt, "decode error"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	played := goDone(func() { s.Play() })
	<-g.entered
	exhausted := goDone(func() { clock.Advance(time.Second) })
	waitUntil(t, func() bool { return s.Snapshot().State == StateError })
	closed := goDone(s.Close)
	waitUntil(t, func() bool { return s.Snapshot().State == StateIdle })
	close(g.release)
	<-played
	<-exhausted
	<-closed

	events := g.recorded()
	for _, e := range events {
		if e == "exhausted" {
			t.Errorf("hook order = %v, want no exhaustion reported for a closed dialog", events)
		}
	}
	if last := events[len(events)-1]; last != "changed:idle" {
		t.Errorf("hook order = %v, want idle published last", events)
	}
}
