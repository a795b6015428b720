package web

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"academy/internal/adapters/http/middleware"
	"academy/internal/application/listutil"
	"academy/internal/application/orchestrators"
	"academy/internal/domain/lesson"
	"academy/internal/domain/video"
)

// lessonView is the JSON shape of a lesson.
type lessonView struct {
	ID           string         `json:"id"`
	CourseID     string         `json:"course_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	PrimaryURL   string         `json:"primary_url"`
	FallbackURLs []string       `json:"fallback_urls"`
	MP4URLs      []string       `json:"mp4_urls"`
	DownloadURL  string         `json:"download_url,omitempty"`
	Position     int            `json:"position"`
	Sources      []video.Source `json:"sources"`
	CreatedAt    time.Time      `json:"created_at"`
}

func newLessonView(l lesson.Lesson) lessonView {
	return lessonView{
		ID:           l.ID,
		CourseID:     l.CourseID,
		Title:        l.Title,
		Description:  l.Description,
		PrimaryURL:   l.PrimaryURL,
		FallbackURLs: lo.Ternary(l.FallbackURLs == nil, []string{}, l.FallbackURLs),
		MP4URLs:      lo.Ternary(l.MP4URLs == nil, []string{}, l.MP4URLs),
		DownloadURL:  l.DownloadURL,
		Position:     l.Position,
		Sources:      l.SourceConfig().Sources(),
		CreatedAt:    l.CreatedAt,
	}
}

// lessonSortColumns are the sort keys GET /api/lessons accepts.
var lessonSortColumns = []string{"title", "position", "created_at"}

type lessonListResponse struct {
	Lessons []lessonView      `json:"lessons"`
	Page    listutil.PageInfo `json:"page"`
}

// GET /api/lessons[?course_id=&q=&sort=&dir=&page=&per_page=]
func handleListLessons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		lessons []lesson.Lesson
		err     error
	)
	if courseID := q.Get("course_id"); courseID != "" {
		lessons, err = stores.LessonStore.ListByCourse(r.Context(), courseID)
	} else {
		lessons, err = stores.LessonStore.List(r.Context())
	}
	if err != nil {
		internalError(w, err)
		return
	}

	params := listutil.Parse(q, lessonSortColumns)
	if params.Search != "" {
		lessons = lo.Filter(lessons, func(l lesson.Lesson, _ int) bool {
			return strings.Contains(strings.ToLower(l.Title), params.Search)
		})
	}
	sortLessons(lessons, params.Sort, params.Desc)

	page, info := listutil.Paginate(lessons, params)
	writeJSON(w, http.StatusOK, lessonListResponse{
		Lessons: lo.Map(page, func(l lesson.Lesson, _ int) lessonView { return newLessonView(l) }),
		Page:    info,
	})
}

// sortLessons reorders in place; an empty column keeps the store order.
func sortLessons(lessons []lesson.Lesson, column string, desc bool) {
	var cmp func(a, b lesson.Lesson) int
	switch column {
	case "title":
		cmp = func(a, b lesson.Lesson) int { return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) }
	case "position":
		cmp = func(a, b lesson.Lesson) int { return a.Position - b.Position }
	case "created_at":
		cmp = func(a, b lesson.Lesson) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return
	}
	slices.SortStableFunc(lessons, func(a, b lesson.Lesson) int {
		if desc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
}

type createLessonRequest struct {
	CourseID     string   `json:"course_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	PrimaryURL   string   `json:"primary_url"`
	FallbackURLs []string `json:"fallback_urls"`
	MP4URLs      []string `json:"mp4_urls"`
	DownloadURL  string   `json:"download_url"`
	Position     int      `json:"position"`
}

// POST /api/lessons (coach, admin)
func handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var req createLessonRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, _ := middleware.GetIdentityFromContext(r.Context())

	l, err := orchestrators.ExecuteCreateLesson(r.Context(), orchestrators.CreateLessonInput{
		CourseID:     req.CourseID,
		Title:        req.Title,
		Description:  req.Description,
		PrimaryURL:   req.PrimaryURL,
		FallbackURLs: req.FallbackURLs,
		MP4URLs:      req.MP4URLs,
		DownloadURL:  req.DownloadURL,
		Position:     req.Position,
		AuthorID:     id.UserID,
	}, orchestrators.CreateLessonDeps{
		LessonStore: stores.LessonStore,
		GenerateID:  generateID,
		Now:         timeNow,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLessonView(l))
}

type importEntryErrorView struct {
	Entry   int    `json:"entry"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

type importResultView struct {
	Total   int                    `json:"total"`
	Created int                    `json:"created"`
	Updated int                    `json:"updated"`
	DryRun  bool                   `json:"dry_run"`
	Errors  []importEntryErrorView `json:"errors"`
}

// POST /api/lessons/import[?dry_run=true] (admin). The body is a TOML catalog.
func handleImportLessons(w http.ResponseWriter, r *http.Request) {
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	id, _ := middleware.GetIdentityFromContext(r.Context())

	result, err := orchestrators.ExecuteImportLessons(r.Context(), orchestrators.ImportLessonsInput{
		Reader:   http.MaxBytesReader(w, r.Body, maxBodyBytes),
		AuthorID: id.UserID,
		DryRun:   dryRun,
	}, orchestrators.ImportLessonsDeps{
		LessonStore: stores.LessonStore,
		GenerateID:  generateID,
		Now:         timeNow,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResultView{
		Total:   result.Total,
		Created: result.Created,
		Updated: result.Updated,
		DryRun:  result.DryRun,
		Errors: lo.Map(result.Errors, func(e orchestrators.ImportLessonsEntryError, _ int) importEntryErrorView {
			return importEntryErrorView{Entry: e.Entry, Title: e.Title, Message: e.Message}
		}),
	})
}

// lessonPageData feeds lesson.html.
type lessonPageData struct {
	Lesson      lesson.Lesson
	Sources     []video.Source
	YouTubeID   string
	EmbedURL    string
	ShowSources bool
}

// GET /lessons/{id}
func handleLessonPage(w http.ResponseWriter, r *http.Request) {
	l, err := stores.LessonStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if !isHTMLRequest(r) {
			writeDomainError(w, err)
			return
		}
		if errors.Is(err, lesson.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		internalError(w, err)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, http.StatusOK, newLessonView(l))
		return
	}

	data := lessonPageData{
		Lesson:      l,
		Sources:     l.SourceConfig().Sources(),
		ShowSources: middleware.IsCoachOrAdmin(r.Context()),
	}
	if ytID, ok := l.YouTubeID(); ok {
		data.YouTubeID = ytID
		data.EmbedURL = video.EmbedURL(ytID, 0)
	}
	renderTemplate(w, r, "lesson.html", data)
}
