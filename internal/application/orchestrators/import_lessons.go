package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"academy/internal/domain/lesson"
)

// lessonCatalogFile is the TOML layout accepted by the lesson import:
//
//	[[lesson]]
//	id = "intro"              # optional; existing IDs are updated
//	course_id = "guard-101"
//	title = "Closed guard basics"
//	primary_url = "https://youtu.be/dQw4w9WgXcQ"
//	fallback_urls = ["https://cdn.example.com/intro/master.m3u8"]
//	mp4_urls = ["https://cdn.example.com/intro-720p.mp4"]
type lessonCatalogFile struct {
	Lessons []lessonCatalogEntry `toml:"lesson"`
}

type lessonCatalogEntry struct {
	ID           string   `toml:"id"`
	CourseID     string   `toml:"course_id"`
	Title        string   `toml:"title"`
	Description  string   `toml:"description"`
	PrimaryURL   string   `toml:"primary_url"`
	FallbackURLs []string `toml:"fallback_urls"`
	MP4URLs      []string `toml:"mp4_urls"`
	DownloadURL  string   `toml:"download_url"`
	Position     int      `toml:"position"`
}

// ImportLessonsInput carries the catalog stream and import options.
// PRE: Reader is a TOML document with [[lesson]] tables; AuthorID is non-empty.
// INVARIANT: lessons are never deleted; CreatedBy and CreatedAt survive updates.
type ImportLessonsInput struct {
	Reader   io.Reader
	AuthorID string
	DryRun   bool
}

// ImportLessonsResult holds aggregate counts and per-entry errors from an import run.
type ImportLessonsResult struct {
	Total   int
	Created int
	Updated int
	Errors  []ImportLessonsEntryError
	DryRun  bool
}

// ImportLessonsEntryError describes why one [[lesson]] table was rejected.
// Entry is 1-based in document order.
type ImportLessonsEntryError struct {
	Entry   int
	Title   string
	Message string
}

// ImportLessonsDeps holds external dependencies for the import orchestrator.
type ImportLessonsDeps struct {
	LessonStore LessonStoreForOrchestrator
	GenerateID  func() string
	Now         func() time.Time
}

// ExecuteImportLessons parses a TOML lesson catalog and creates or updates lessons.
// PRE: input.Reader is non-nil
// POST: valid entries are saved unless DryRun; invalid entries are reported, not saved.
// A malformed document or unknown key fails the whole import with a LessonValidationError.
func ExecuteImportLessons(ctx context.Context, input ImportLessonsInput, deps ImportLessonsDeps) (ImportLessonsResult, error) {
	if input.AuthorID == "" {
		return ImportLessonsResult{}, &LessonValidationError{Message: "author is required"}
	}
	var file lessonCatalogFile
	if err := toml.NewDecoder(input.Reader).DisallowUnknownFields().Decode(&file); err != nil {
		return ImportLessonsResult{}, &LessonValidationError{Message: describeTOMLError(err)}
	}

	result := ImportLessonsResult{DryRun: input.DryRun, Total: len(file.Lessons)}
	for i, entry := range file.Lessons {
		n := i + 1
		l, exists, err := resolveCatalogEntry(ctx, entry, input.AuthorID, deps)
		if err != nil {
			result.Errors = append(result.Errors, ImportLessonsEntryError{Entry: n, Title: entry.Title, Message: err.Error()})
			continue
		}
		if !input.DryRun {
			if err := deps.LessonStore.Save(ctx, l); err != nil {
				slog.Error("lessons_import_save_failed", "entry", n, "lesson_id", l.ID, "err", err)
				result.Errors = append(result.Errors, ImportLessonsEntryError{Entry: n, Title: entry.Title, Message: "save failed (see server log)"})
				continue
			}
		}
		if exists {
			result.Updated++
		} else {
			result.Created++
		}
	}

	slog.Info("lessons_import",
		"author", input.AuthorID,
		"dry_run", input.DryRun,
		"total", result.Total,
		"created", result.Created,
		"updated", result.Updated,
		"errors", len(result.Errors),
	)
	return result, nil
}

// resolveCatalogEntry merges an entry onto the stored lesson with the same ID,
// or builds a new lesson, and validates the outcome.
func resolveCatalogEntry(ctx context.Context, entry lessonCatalogEntry, authorID string, deps ImportLessonsDeps) (lesson.Lesson, bool, error) {
	l := lesson.Lesson{CreatedBy: authorID, CreatedAt: deps.Now()}
	exists := false
	if id := strings.TrimSpace(entry.ID); id != "" {
		existing, err := deps.LessonStore.GetByID(ctx, id)
		switch {
		case err == nil:
			l, exists = existing, true
		case errors.Is(err, lesson.ErrNotFound):
			l.ID = id
		default:
			return lesson.Lesson{}, false, fmt.Errorf("lookup failed: %w", err)
		}
	} else {
		l.ID = deps.GenerateID()
	}

	l.CourseID = strings.TrimSpace(entry.CourseID)
	l.Title = strings.TrimSpace(entry.Title)
	l.Description = entry.Description
	l.PrimaryURL = canonicalPrimaryURL(entry.PrimaryURL)
	l.FallbackURLs = cleanURLs(entry.FallbackURLs)
	l.MP4URLs = cleanURLs(entry.MP4URLs)
	l.DownloadURL = strings.TrimSpace(entry.DownloadURL)
	l.Position = entry.Position
	if err := l.Validate(); err != nil {
		return lesson.Lesson{}, false, err
	}
	return l, exists, nil
}

func describeTOMLError(err error) string {
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Sprintf("catalog is not valid TOML (line %d, column %d): %s", row, col, decodeErr.Error())
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		return "catalog has unknown keys: " + strictErr.Error()
	}
	return "catalog could not be read: " + err.Error()
}
