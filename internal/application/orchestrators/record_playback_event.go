package orchestrators

import (
	"context"
	"time"

	"academy/internal/domain/playback"
	"academy/internal/domain/video"
)

// PlaybackEventStoreForOrchestrator defines the store interface needed to record diagnostics.
type PlaybackEventStoreForOrchestrator interface {
	Save(ctx context.Context, e playback.Event) error
}

// RecordPlaybackEventInput carries one attempt outcome.
type RecordPlaybackEventInput struct {
	SessionID string
	LessonID  string
	Kind      playback.Kind
	Source    video.Source
	Attempt   uint64
	Detail    string
}

// RecordPlaybackEventDeps holds dependencies for RecordPlaybackEvent.
type RecordPlaybackEventDeps struct {
	EventStore PlaybackEventStoreForOrchestrator
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteRecordPlaybackEvent validates and persists a diagnostics event.
// PRE: input.SessionID and input.LessonID are non-empty
// POST: the event is stored with a fresh ID; an over-long Detail is truncated
func ExecuteRecordPlaybackEvent(ctx context.Context, input RecordPlaybackEventInput, deps RecordPlaybackEventDeps) (playback.Event, error) {
	e := playback.Event{
		ID:         deps.GenerateID(),
		SessionID:  input.SessionID,
		LessonID:   input.LessonID,
		Kind:       input.Kind,
		SourceURL:  input.Source.URL,
		SourceType: string(input.Source.Type),
		Attempt:    input.Attempt,
		Detail:     input.Detail,
		CreatedAt:  deps.Now(),
	}
	if err := e.Validate(); err != nil {
		return playback.Event{}, err
	}
	if err := deps.EventStore.Save(ctx, e); err != nil {
		return playback.Event{}, err
	}
	return e, nil
}
