package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"academy/internal/adapters/http/middleware"
	"academy/internal/application/orchestrators"
	"academy/internal/application/player"
	"academy/internal/domain/lesson"
)

//go:embed templates/*.html
var templateFS embed.FS

var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// timeNow is swapped in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps orchestrator and player errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var validation *orchestrators.LessonValidationError
	switch {
	case errors.As(err, &validation):
		writeJSONError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, lesson.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "lesson not found")
	case errors.Is(err, player.ErrSessionNotFound), errors.Is(err, player.ErrClosed):
		writeJSONError(w, http.StatusNotFound, "playback session not found")
	case errors.Is(err, player.ErrStaleAttempt), errors.Is(err, player.ErrNotTerminal):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, player.ErrWrongWidget):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, player.ErrNoSource):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		internalError(w, err)
	}
}

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	id, ok := middleware.GetIdentityFromContext(r.Context())

	funcMap := template.FuncMap{
		"currentRole":  func() string { return id.Role },
		"currentEmail": func() string { return id.Email },
		"isLoggedIn":   func() bool { return ok },
		"csrfToken":    func() string { return csrf.Token(r) },
		"renderMarkdown": func(md string) template.HTML {
			var buf bytes.Buffer
			if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(md))
			}
			return template.HTML(buf.String())
		},
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": players.Len(),
	})
}
