package orchestrators

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	emailAdapter "academy/internal/adapters/email"
	"academy/internal/domain/lesson"
	"academy/internal/domain/playback"
	"academy/internal/domain/video"
)

// DefaultAlertInterval is how often one lesson may trigger an admin alert.
const DefaultAlertInterval = time.Hour

// AlertLimiter allows at most one alert per lesson per interval.
type AlertLimiter struct {
	mu       sync.Mutex
	every    rate.Limit
	limiters map[string]*rate.Limiter
}

// NewAlertLimiter creates a limiter. A non-positive interval selects DefaultAlertInterval.
func NewAlertLimiter(interval time.Duration) *AlertLimiter {
	if interval <= 0 {
		interval = DefaultAlertInterval
	}
	return &AlertLimiter{every: rate.Every(interval), limiters: make(map[string]*rate.Limiter)}
}

// AllowAt reports whether lessonID may alert at now, consuming the allowance if so.
func (a *AlertLimiter) AllowAt(lessonID string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[lessonID]
	if !ok {
		l = rate.NewLimiter(a.every, 1)
		a.limiters[lessonID] = l
	}
	return l.AllowN(now, 1)
}

// ReportUnavailableInput describes a session that ran out of sources.
type ReportUnavailableInput struct {
	SessionID string
	Lesson    lesson.Lesson
	Attempt   uint64
}

// ReportUnavailableDeps holds dependencies for ReportUnavailable.
type ReportUnavailableDeps struct {
	EventStore PlaybackEventStoreForOrchestrator
	Sender     emailAdapter.Sender
	AdminEmail string        // empty disables the alert email
	Limiter    *AlertLimiter // nil sends on every exhaustion
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteReportUnavailable records that a viewer saw "video unavailable" and
// alerts the academy admin.
// PRE: input.SessionID and input.Lesson.ID are non-empty
// POST: an exhausted event is stored; an email is sent unless disabled or throttled
func ExecuteReportUnavailable(ctx context.Context, input ReportUnavailableInput, deps ReportUnavailableDeps) error {
	now := deps.Now()
	if _, err := ExecuteRecordPlaybackEvent(ctx, RecordPlaybackEventInput{
		SessionID: input.SessionID,
		LessonID:  input.Lesson.ID,
		Kind:      playback.KindExhausted,
		Attempt:   input.Attempt,
		Detail:    fmt.Sprintf("%d sources tried", len(input.Lesson.SourceConfig().Sources())),
	}, RecordPlaybackEventDeps{
		EventStore: deps.EventStore,
		GenerateID: deps.GenerateID,
		Now:        func() time.Time { return now },
	}); err != nil {
		return fmt.Errorf("record exhausted event: %w", err)
	}

	if deps.AdminEmail == "" || deps.Sender == nil {
		return nil
	}
	if deps.Limiter != nil && !deps.Limiter.AllowAt(input.Lesson.ID, now) {
		slog.Info("playback_event", "event", "unavailable_alert_throttled", "lesson_id", input.Lesson.ID)
		return nil
	}

	_, err := deps.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{deps.AdminEmail},
		Subject: "Video unavailable: " + input.Lesson.Title,
		HTML:    unavailableAlertHTML(input.Lesson, input.SessionID),
		Text:    unavailableAlertText(input.Lesson, input.SessionID),
		Tags:    map[string]string{"category": "playback_unavailable"},
	})
	if err != nil {
		return fmt.Errorf("send unavailable alert: %w", err)
	}
	return nil
}

func unavailableAlertHTML(l lesson.Lesson, sessionID string) string {
	items := lo.Map(l.SourceConfig().Sources(), func(s video.Source, _ int) string {
		return "<li><code>" + html.EscapeString(string(s.Type)) + "</code> " + html.EscapeString(s.URL) + "</li>"
	})
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Every source for <strong>%s</strong> failed to play.</p>", html.EscapeString(l.Title))
	fmt.Fprintf(&b, "<p>Lesson %s, course %s, session %s.</p>", html.EscapeString(l.ID), html.EscapeString(l.CourseID), html.EscapeString(sessionID))
	b.WriteString("<ol>" + strings.Join(items, "") + "</ol>")
	return b.String()
}

func unavailableAlertText(l lesson.Lesson, sessionID string) string {
	lines := lo.Map(l.SourceConfig().Sources(), func(s video.Source, i int) string {
		return fmt.Sprintf("%d. [%s] %s", i+1, s.Type, s.URL)
	})
	return fmt.Sprintf("Every source for %q failed to play.\nLesson %s, course %s, session %s.\n\n%s\n",
		l.Title, l.ID, l.CourseID, sessionID, strings.Join(lines, "\n"))
}
