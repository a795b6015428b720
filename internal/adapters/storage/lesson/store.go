package lesson

import (
	"context"

	domain "academy/internal/domain/lesson"
)

// Store persists Lesson state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Lesson, error)
	Save(ctx context.Context, value domain.Lesson) error
	Delete(ctx context.Context, id string) error
	ListByCourse(ctx context.Context, courseID string) ([]domain.Lesson, error)
	List(ctx context.Context) ([]domain.Lesson, error)
}
