package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	emailAdapter "academy/internal/adapters/email"
	"academy/internal/domain/lesson"
	"academy/internal/domain/playback"
)

var fixedTime = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

func fixedID() string { return "test-id-001" }

// sequentialIDs returns a generator yielding id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// mockLessonStore implements the lesson store interfaces for testing.
type mockLessonStore struct {
	lessons map[string]lesson.Lesson
	saveErr error
	getErr  error
	saves   int
}

func newMockLessonStore(seed ...lesson.Lesson) *mockLessonStore {
	m := &mockLessonStore{lessons: make(map[string]lesson.Lesson)}
	for _, l := range seed {
		m.lessons[l.ID] = l
	}
	return m
}

func (m *mockLessonStore) GetByID(_ context.Context, id string) (lesson.Lesson, error) {
	if m.getErr != nil {
		return lesson.Lesson{}, m.getErr
	}
	l, ok := m.lessons[id]
	if !ok {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	return l, nil
}

func (m *mockLessonStore) Save(_ context.Context, l lesson.Lesson) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.lessons[l.ID] = l
	return nil
}

func (m *mockLessonStore) List(_ context.Context) ([]lesson.Lesson, error) {
	var list []lesson.Lesson
	for _, l := range m.lessons {
		list = append(list, l)
	}
	return list, nil
}

// mockEventStore implements PlaybackEventStoreForOrchestrator for testing.
type mockEventStore struct {
	mu      sync.Mutex
	events  []playback.Event
	saveErr error
}

func (m *mockEventStore) Save(_ context.Context, e playback.Event) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockEventStore) saved() []playback.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]playback.Event(nil), m.events...)
}

// failingSender is an email sender that always errors.
type failingSender struct{}

func (failingSender) Send(context.Context, emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	return emailAdapter.SendResult{}, errors.New("provider down")
}

func sampleLesson() lesson.Lesson {
	return lesson.Lesson{
		ID:           "lesson-1",
		CourseID:     "guard-101",
		Title:        "Closed guard basics",
		PrimaryURL:   "https://media.academy.example/guard/master.m3u8",
		FallbackURLs: []string{"https://media.academy.example/guard/manifest.mpd"},
		MP4URLs:      []string{"https://media.academy.example/guard-720p.mp4"},
		CreatedBy:    "coach-1",
		CreatedAt:    fixedTime,
	}
}
