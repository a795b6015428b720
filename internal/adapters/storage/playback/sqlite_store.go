package playback

import (
	"context"
	"time"

	"academy/internal/adapters/storage"
	domain "academy/internal/domain/playback"
)

// DefaultListLimit caps ListByLesson when the caller passes a non-positive limit.
const DefaultListLimit = 100

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db is a valid, migrated database connection
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save appends an event. Events are immutable; saving an existing ID is a no-op.
// PRE: value has a non-empty ID
// POST: event is persisted
func (s *SQLiteStore) Save(ctx context.Context, value domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playback_event (id, session_id, lesson_id, kind, source_url, source_type, attempt, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		value.ID, value.SessionID, value.LessonID, string(value.Kind), value.SourceURL, value.SourceType, int64(value.Attempt), value.Detail, value.CreatedAt.UTC(),
	)
	return err
}

// ListByLesson returns a lesson's most recent events, newest first.
// PRE: lessonID is non-empty
// POST: at most limit events (DefaultListLimit when limit <= 0)
func (s *SQLiteStore) ListByLesson(ctx context.Context, lessonID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, lesson_id, kind, source_url, source_type, attempt, detail, created_at
		 FROM playback_event WHERE lesson_id = ? ORDER BY created_at DESC, id LIMIT ?`, lessonID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []domain.Event
	for rows.Next() {
		var e domain.Event
		var kind string
		var attempt int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.LessonID, &kind, &e.SourceURL, &e.SourceType, &attempt, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.Kind(kind)
		e.Attempt = uint64(attempt)
		list = append(list, e)
	}
	return list, rows.Err()
}

// CountByKindSince aggregates events recorded at or after since.
// POST: one row per (lesson, kind) pair with a non-zero count
func (s *SQLiteStore) CountByKindSince(ctx context.Context, since time.Time) ([]KindCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lesson_id, kind, COUNT(*) FROM playback_event
		 WHERE created_at >= ? GROUP BY lesson_id, kind ORDER BY lesson_id, kind`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []KindCount
	for rows.Next() {
		var c KindCount
		var kind string
		if err := rows.Scan(&c.LessonID, &kind, &c.Count); err != nil {
			return nil, err
		}
		c.Kind = domain.Kind(kind)
		list = append(list, c)
	}
	return list, rows.Err()
}
