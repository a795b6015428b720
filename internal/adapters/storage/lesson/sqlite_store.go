package lesson

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"academy/internal/adapters/storage"
	domain "academy/internal/domain/lesson"
)

const selectColumns = `SELECT id, course_id, title, description, primary_url, fallback_urls, mp4_urls, download_url, position, created_by, created_at FROM lesson`

// SQLiteStore implements Store using SQLite.
// URL lists are stored as JSON arrays.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db is a valid, migrated database connection
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLesson(row scanner) (domain.Lesson, error) {
	var l domain.Lesson
	var fallbacks, mp4s string
	if err := row.Scan(&l.ID, &l.CourseID, &l.Title, &l.Description, &l.PrimaryURL, &fallbacks, &mp4s, &l.DownloadURL, &l.Position, &l.CreatedBy, &l.CreatedAt); err != nil {
		return l, err
	}
	if err := json.Unmarshal([]byte(fallbacks), &l.FallbackURLs); err != nil {
		return l, fmt.Errorf("decode fallback_urls for lesson %s: %w", l.ID, err)
	}
	if err := json.Unmarshal([]byte(mp4s), &l.MP4URLs); err != nil {
		return l, fmt.Errorf("decode mp4_urls for lesson %s: %w", l.ID, err)
	}
	return l, nil
}

func encodeURLs(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	return string(b), err
}

// GetByID retrieves a lesson by its ID.
// PRE: id is non-empty
// POST: returns the lesson, or domain.ErrNotFound if no row matches
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Lesson, error) {
	l, err := scanLesson(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lesson{}, domain.ErrNotFound
	}
	return l, err
}

// Save inserts or updates a lesson. CreatedBy and CreatedAt are kept on update.
// PRE: value has a non-empty ID
// POST: lesson is persisted
func (s *SQLiteStore) Save(ctx context.Context, value domain.Lesson) error {
	fallbacks, err := encodeURLs(value.FallbackURLs)
	if err != nil {
		return err
	}
	mp4s, err := encodeURLs(value.MP4URLs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lesson (id, course_id, title, description, primary_url, fallback_urls, mp4_urls, download_url, position, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET course_id=excluded.course_id, title=excluded.title, description=excluded.description,
		 primary_url=excluded.primary_url, fallback_urls=excluded.fallback_urls, mp4_urls=excluded.mp4_urls,
		 download_url=excluded.download_url, position=excluded.position`,
		value.ID, value.CourseID, value.Title, value.Description, value.PrimaryURL, fallbacks, mp4s, value.DownloadURL, value.Position, value.CreatedBy, value.CreatedAt.UTC(),
	)
	return err
}

// Delete removes a lesson by ID.
// PRE: id is non-empty
// POST: lesson is removed from storage
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM lesson WHERE id = ?`, id)
	return err
}

// ListByCourse returns a course's lessons in playlist order.
// PRE: courseID is non-empty
// POST: returns matching lessons ordered by position, then title
func (s *SQLiteStore) ListByCourse(ctx context.Context, courseID string) ([]domain.Lesson, error) {
	return s.list(ctx, selectColumns+` WHERE course_id = ? ORDER BY position, title`, courseID)
}

// List returns every lesson grouped by course.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Lesson, error) {
	return s.list(ctx, selectColumns+` ORDER BY course_id, position, title`)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]domain.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []domain.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
