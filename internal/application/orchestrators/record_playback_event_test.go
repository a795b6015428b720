package orchestrators

import (
	"context"
	"strings"
	"testing"

	"academy/internal/domain/playback"
	"academy/internal/domain/video"
)

// TestExecuteRecordPlaybackEvent_Valid tests that a failure is persisted with source details.
func TestExecuteRecordPlaybackEvent_Valid(t *testing.T) {
	store := &mockEventStore{}
	e, err := ExecuteRecordPlaybackEvent(context.Background(), RecordPlaybackEventInput{
		SessionID: "s1",
		LessonID:  "lesson-1",
		Kind:      playback.KindTimeout,
		Source:    video.NewSource("https://media.academy.example/a.m3u8"),
		Attempt:   2,
	}, RecordPlaybackEventDeps{EventStore: store, GenerateID: fixedID, Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != "test-id-001" || !e.CreatedAt.Equal(fixedTime) {
		t.Errorf("event = %+v", e)
	}
	if e.SourceType != string(video.SourceHLS) {
		t.Errorf("source type = %q, want hls", e.SourceType)
	}
	if len(store.saved()) != 1 {
		t.Errorf("saved = %d, want 1", len(store.saved()))
	}
}

// TestExecuteRecordPlaybackEvent_Invalid tests that invalid events are not stored.
func TestExecuteRecordPlaybackEvent_Invalid(t *testing.T) {
	store := &mockEventStore{}
	_, err := ExecuteRecordPlaybackEvent(context.Background(), RecordPlaybackEventInput{
		SessionID: "s1",
		LessonID:  "lesson-1",
		Kind:      "stalled",
	}, RecordPlaybackEventDeps{EventStore: store, GenerateID: fixedID, Now: fixedNow})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if len(store.saved()) != 0 {
		t.Error("invalid event was stored")
	}
}

// TestExecuteRecordPlaybackEvent_TruncatesDetail tests the detail bound.
func TestExecuteRecordPlaybackEvent_TruncatesDetail(t *testing.T) {
	store := &mockEventStore{}
	e, err := ExecuteRecordPlaybackEvent(context.Background(), RecordPlaybackEventInput{
		SessionID: "s1",
		LessonID:  "lesson-1",
		Kind:      playback.KindError,
		Detail:    strings.Repeat("x", playback.MaxDetailLength+10),
	}, RecordPlaybackEventDeps{EventStore: store, GenerateID: fixedID, Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Detail) != playback.MaxDetailLength {
		t.Errorf("detail length = %d, want %d", len(e.Detail), playback.MaxDetailLength)
	}
}
