package projections

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	playbackStore "academy/internal/adapters/storage/playback"
	domainLesson "academy/internal/domain/lesson"
	domainPlayback "academy/internal/domain/playback"
)

// PlaybackHealthEventStore defines the event store interface needed by the health projection.
type PlaybackHealthEventStore interface {
	CountByKindSince(ctx context.Context, since time.Time) ([]playbackStore.KindCount, error)
}

// PlaybackHealthLessonStore defines the lesson store interface needed by the health projection.
type PlaybackHealthLessonStore interface {
	List(ctx context.Context) ([]domainLesson.Lesson, error)
}

// DefaultHealthWindow is the look-back used when the query does not set one.
const DefaultHealthWindow = 7 * 24 * time.Hour

// GetPlaybackHealthQuery carries input for the playback health projection.
type GetPlaybackHealthQuery struct {
	Window time.Duration // look-back; zero uses DefaultHealthWindow
	Now    time.Time     // optional: if zero, time.Now() is used
}

// LessonPlaybackHealth is one lesson's outcome counts within the window.
type LessonPlaybackHealth struct {
	LessonID  string  `json:"lesson_id"`
	CourseID  string  `json:"course_id"`
	Title     string  `json:"title"`
	Ready     int     `json:"ready"`
	Timeouts  int     `json:"timeouts"`
	Errors    int     `json:"errors"`
	Exhausted int     `json:"exhausted"`
	// FailureRate is recoverable failures per load attempt (ready + failures).
	FailureRate float64 `json:"failure_rate"`
}

// GetPlaybackHealthResult carries the output of the playback health projection.
type GetPlaybackHealthResult struct {
	Since   time.Time              `json:"since"`
	Lessons []LessonPlaybackHealth `json:"lessons"`
}

// GetPlaybackHealthDeps holds dependencies for the playback health projection.
type GetPlaybackHealthDeps struct {
	EventStore  PlaybackHealthEventStore
	LessonStore PlaybackHealthLessonStore
}

// QueryGetPlaybackHealth reports which lessons' videos fail to play.
// PRE: query.Window >= 0
// POST: only lessons with events in the window are listed, worst first:
// most exhaustions, then highest failure rate, then title
func QueryGetPlaybackHealth(ctx context.Context, query GetPlaybackHealthQuery, deps GetPlaybackHealthDeps) (GetPlaybackHealthResult, error) {
	if query.Window < 0 {
		return GetPlaybackHealthResult{}, fmt.Errorf("window cannot be negative")
	}
	now := query.Now
	if now.IsZero() {
		now = time.Now()
	}
	window := query.Window
	if window == 0 {
		window = DefaultHealthWindow
	}
	since := now.Add(-window)

	counts, err := deps.EventStore.CountByKindSince(ctx, since)
	if err != nil {
		return GetPlaybackHealthResult{}, err
	}
	lessons, err := deps.LessonStore.List(ctx)
	if err != nil {
		return GetPlaybackHealthResult{}, err
	}
	byID := lo.KeyBy(lessons, func(l domainLesson.Lesson) string { return l.ID })

	rows := make(map[string]*LessonPlaybackHealth)
	for _, c := range counts {
		row, ok := rows[c.LessonID]
		if !ok {
			row = &LessonPlaybackHealth{LessonID: c.LessonID}
			if l, found := byID[c.LessonID]; found {
				row.CourseID = l.CourseID
				row.Title = l.Title
			}
			rows[c.LessonID] = row
		}
		switch c.Kind {
		case domainPlayback.KindReady:
			row.Ready += c.Count
		case domainPlayback.KindTimeout:
			row.Timeouts += c.Count
		case domainPlayback.KindError:
			row.Errors += c.Count
		case domainPlayback.KindExhausted:
			row.Exhausted += c.Count
		}
	}

	result := lo.Map(lo.Values(rows), func(r *LessonPlaybackHealth, _ int) LessonPlaybackHealth {
		failures := r.Timeouts + r.Errors
		if attempts := r.Ready + failures; attempts > 0 {
			r.FailureRate = float64(failures) / float64(attempts)
		}
		return *r
	})
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Exhausted != b.Exhausted {
			return a.Exhausted > b.Exhausted
		}
		if a.FailureRate != b.FailureRate {
			return a.FailureRate > b.FailureRate
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.LessonID < b.LessonID
	})

	return GetPlaybackHealthResult{Since: since, Lessons: result}, nil
}
