package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"academy/internal/domain/lesson"
)

// LessonStoreForSeed defines the store interface needed by SeedLessons.
type LessonStoreForSeed interface {
	Save(ctx context.Context, l lesson.Lesson) error
	List(ctx context.Context) ([]lesson.Lesson, error)
}

// SeedLessonsDeps holds dependencies for SeedLessons.
type SeedLessonsDeps struct {
	LessonStore LessonStoreForSeed
	Now         func() time.Time
}

// DemoCourseID is the course the development seed lessons belong to.
const DemoCourseID = "demo-course"

// ExecuteSeedLessons creates demo lessons covering each recovery path if no
// lessons exist.
// POST: the store holds the demo course, or is unchanged when it was not empty
func ExecuteSeedLessons(ctx context.Context, deps SeedLessonsDeps) error {
	existing, err := deps.LessonStore.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := deps.Now()
	lessons := []lesson.Lesson{
		{
			Title:       "Welcome (YouTube)",
			Description: "A YouTube-hosted lesson. It plays in the native embed and gets a single retry.",
			PrimaryURL:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			MP4URLs:     []string{"https://media.academy.example/welcome-720p.mp4"},
		},
		{
			Title:        "Adaptive streaming",
			Description:  "HLS first, DASH as the explicit fallback, then progressive downloads.",
			PrimaryURL:   "https://media.academy.example/adaptive/master.m3u8",
			FallbackURLs: []string{"https://media.academy.example/adaptive/manifest.mpd"},
			MP4URLs: []string{
				"https://media.academy.example/adaptive-1080p.mp4",
				"https://media.academy.example/adaptive-480p.mp4",
			},
		},
		{
			Title:        "Broken primary",
			Description:  "The primary host does not resolve, so the player times out and falls back.",
			PrimaryURL:   "https://offline.invalid/lesson.m3u8",
			FallbackURLs: []string{"https://media.academy.example/recovered-720p.mp4"},
			DownloadURL:  "https://media.academy.example/downloads/recovered.zip",
		},
	}
	for i := range lessons {
		lessons[i].ID = uuid.New().String()
		lessons[i].CourseID = DemoCourseID
		lessons[i].Position = i + 1
		lessons[i].CreatedBy = "seed"
		lessons[i].CreatedAt = now
		if err := deps.LessonStore.Save(ctx, lessons[i]); err != nil {
			return err
		}
	}

	slog.Info("seed_event", "event", "lessons_seeded", "lessons", len(lessons))
	return nil
}
