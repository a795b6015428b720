package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"academy/internal/domain/lesson"
	"academy/internal/domain/video"
)

// LessonStoreForOrchestrator defines the store interface needed by lesson orchestrators.
type LessonStoreForOrchestrator interface {
	GetByID(ctx context.Context, id string) (lesson.Lesson, error)
	Save(ctx context.Context, l lesson.Lesson) error
}

// CreateLessonInput carries input for the create lesson orchestrator.
type CreateLessonInput struct {
	CourseID     string
	Title        string
	Description  string
	PrimaryURL   string
	FallbackURLs []string
	MP4URLs      []string
	DownloadURL  string
	Position     int
	AuthorID     string
}

// CreateLessonDeps holds dependencies for CreateLesson.
type CreateLessonDeps struct {
	LessonStore LessonStoreForOrchestrator
	GenerateID  func() string
	Now         func() time.Time
}

// ExecuteCreateLesson validates and stores a new lesson.
// PRE: input.AuthorID is non-empty
// POST: the lesson is persisted with trimmed URLs and a canonical YouTube primary URL
func ExecuteCreateLesson(ctx context.Context, input CreateLessonInput, deps CreateLessonDeps) (lesson.Lesson, error) {
	if input.AuthorID == "" {
		return lesson.Lesson{}, &LessonValidationError{Message: "author is required"}
	}
	l := lesson.Lesson{
		ID:           deps.GenerateID(),
		CourseID:     strings.TrimSpace(input.CourseID),
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		PrimaryURL:   canonicalPrimaryURL(input.PrimaryURL),
		FallbackURLs: cleanURLs(input.FallbackURLs),
		MP4URLs:      cleanURLs(input.MP4URLs),
		DownloadURL:  strings.TrimSpace(input.DownloadURL),
		Position:     input.Position,
		CreatedBy:    input.AuthorID,
		CreatedAt:    deps.Now(),
	}
	if err := l.Validate(); err != nil {
		return lesson.Lesson{}, &LessonValidationError{Message: err.Error()}
	}
	if err := deps.LessonStore.Save(ctx, l); err != nil {
		return lesson.Lesson{}, err
	}
	slog.Info("lesson_event", "event", "lesson_created", "lesson_id", l.ID, "course_id", l.CourseID, "author", l.CreatedBy, "sources", len(l.SourceConfig().Sources()))
	return l, nil
}

// LessonValidationError is returned when lesson input is rejected.
type LessonValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *LessonValidationError) Error() string {
	return e.Message
}

// canonicalPrimaryURL rewrites YouTube links to the watch form so equivalent
// links are stored identically.
func canonicalPrimaryURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if video.Classify(raw) == video.SourceYouTube {
		return video.NormalizeYouTubeURL(raw)
	}
	return raw
}

func cleanURLs(urls []string) []string {
	return lo.Uniq(lo.Compact(lo.Map(urls, func(u string, _ int) string {
		return strings.TrimSpace(u)
	})))
}
