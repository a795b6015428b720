package playback

import (
	"context"
	"time"

	domain "academy/internal/domain/playback"
)

// KindCount is the number of events of one kind recorded for a lesson.
type KindCount struct {
	LessonID string
	Kind     domain.Kind
	Count    int
}

// Store persists playback diagnostics events.
type Store interface {
	Save(ctx context.Context, value domain.Event) error
	ListByLesson(ctx context.Context, lessonID string, limit int) ([]domain.Event, error)
	CountByKindSince(ctx context.Context, since time.Time) ([]KindCount, error)
}
