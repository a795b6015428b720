package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"academy/internal/application/player"
	"academy/internal/domain/lesson"
)

// LessonStoreForPlayback defines the store interface needed to open a player.
type LessonStoreForPlayback interface {
	GetByID(ctx context.Context, id string) (lesson.Lesson, error)
}

// PlaybackOpener starts a player session. *player.Registry satisfies it.
type PlaybackOpener interface {
	Open(in player.OpenInput, hooks player.Hooks) (*player.Session, player.Snapshot, error)
}

// OpenPlaybackInput carries input for the open playback orchestrator.
type OpenPlaybackInput struct {
	LessonID string
	ViewerID string
}

// OpenPlaybackResult is the opened session and its first snapshot.
type OpenPlaybackResult struct {
	Lesson   lesson.Lesson
	Session  *player.Session
	Snapshot player.Snapshot
}

// OpenPlaybackDeps holds dependencies for OpenPlayback.
type OpenPlaybackDeps struct {
	LessonStore LessonStoreForPlayback
	Players     PlaybackOpener
	// HooksFor builds the observers for a lesson's session; nil means none.
	HooksFor func(l lesson.Lesson) player.Hooks
}

// ExecuteOpenPlayback opens a player dialog for a lesson.
// PRE: input.LessonID is non-empty
// POST: a loading session exists for the lesson's source catalog,
// or lesson.ErrNotFound / player.ErrNoSource is returned and nothing is opened
func ExecuteOpenPlayback(ctx context.Context, input OpenPlaybackInput, deps OpenPlaybackDeps) (OpenPlaybackResult, error) {
	if input.LessonID == "" {
		return OpenPlaybackResult{}, errors.New("lesson ID is required")
	}
	l, err := deps.LessonStore.GetByID(ctx, input.LessonID)
	if err != nil {
		if errors.Is(err, lesson.ErrNotFound) {
			return OpenPlaybackResult{}, err
		}
		return OpenPlaybackResult{}, fmt.Errorf("load lesson %s: %w", input.LessonID, err)
	}

	var hooks player.Hooks
	if deps.HooksFor != nil {
		hooks = deps.HooksFor(l)
	}
	s, snap, err := deps.Players.Open(player.OpenInput{
		PrimaryURL:   l.PrimaryURL,
		FallbackURLs: l.FallbackURLs,
		MP4URLs:      l.MP4URLs,
		DownloadURL:  l.DownloadURL,
	}, hooks)
	if err != nil {
		return OpenPlaybackResult{}, err
	}

	slog.Info("playback_event", "event", "dialog_opened", "lesson_id", l.ID, "session_id", snap.SessionID, "viewer", input.ViewerID, "sources", snap.SourceCount)
	return OpenPlaybackResult{Lesson: l, Session: s, Snapshot: snap}, nil
}
