package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"academy/internal/adapters/http/middleware"
	"academy/internal/adapters/metrics"
	"academy/internal/application/orchestrators"
	"academy/internal/application/player"
	"academy/internal/application/projections"
	"academy/internal/domain/lesson"
	"academy/internal/domain/playback"
	"academy/internal/domain/video"
)

// hookTimeout bounds the storage and email work done from session hooks.
const hookTimeout = 10 * time.Second

// playbackView is the JSON shape of a session snapshot. EmbedURL is set
// while the YouTube embed is the active widget.
type playbackView struct {
	player.Snapshot
	EmbedURL string `json:"embed_url,omitempty"`
}

func newPlaybackView(snap player.Snapshot) playbackView {
	v := playbackView{Snapshot: snap}
	if snap.Source != nil && snap.Source.IsYouTube() {
		if id, err := video.ExtractYouTubeID(snap.Source.URL); err == nil {
			v.EmbedURL = video.EmbedURL(id, int(snap.Controls.Position))
		}
	}
	return v
}

// playbackHooks wires a lesson's session to the websocket hub, metrics and
// the diagnostics log.
func playbackHooks(l lesson.Lesson) player.Hooks {
	h := hub
	eventStore := stores.PlaybackStore
	recordDeps := orchestrators.RecordPlaybackEventDeps{
		EventStore: eventStore,
		GenerateID: generateID,
		Now:        timeNow,
	}

	var mu sync.Mutex
	var readyAttempt uint64

	return player.Hooks{
		Changed: func(snap player.Snapshot) {
			h.Publish(snap)
			switch snap.State {
			case player.StateIdle:
				h.CloseSession(snap.SessionID)
			case player.StateReady:
				mu.Lock()
				first := readyAttempt != snap.Attempt
				readyAttempt = snap.Attempt
				mu.Unlock()
				if !first || snap.Source == nil {
					return
				}
				metrics.PlaybackReady.WithLabelValues(string(snap.Source.Type)).Inc()
				ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
				defer cancel()
				if _, err := orchestrators.ExecuteRecordPlaybackEvent(ctx, orchestrators.RecordPlaybackEventInput{
					SessionID: snap.SessionID,
					LessonID:  l.ID,
					Kind:      playback.KindReady,
					Source:    *snap.Source,
					Attempt:   snap.Attempt,
				}, recordDeps); err != nil {
					slog.Error("playback_event_record_failed", "session_id", snap.SessionID, "kind", playback.KindReady, "error", err)
				}
			}
		},
		Failed: func(f player.Failure) {
			metrics.PlaybackFailures.WithLabelValues(string(f.Kind), string(f.Source.Type)).Inc()
			ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
			defer cancel()
			if _, err := orchestrators.ExecuteRecordPlaybackEvent(ctx, orchestrators.RecordPlaybackEventInput{
				SessionID: f.SessionID,
				LessonID:  l.ID,
				Kind:      playback.Kind(f.Kind),
				Source:    f.Source,
				Attempt:   f.Attempt,
				Detail:    f.Reason,
			}, recordDeps); err != nil {
				slog.Error("playback_event_record_failed", "session_id", f.SessionID, "kind", f.Kind, "error", err)
			}
		},
		Exhausted: func(snap player.Snapshot) {
			metrics.PlaybackExhausted.Inc()
			ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
			defer cancel()
			if err := orchestrators.ExecuteReportUnavailable(ctx, orchestrators.ReportUnavailableInput{
				SessionID: snap.SessionID,
				Lesson:    l,
				Attempt:   snap.Attempt,
			}, orchestrators.ReportUnavailableDeps{
				EventStore: eventStore,
				Sender:     emailSender,
				AdminEmail: adminEmail,
				Limiter:    alertLimiter,
				GenerateID: generateID,
				Now:        timeNow,
			}); err != nil {
				slog.Error("playback_unavailable_report_failed", "session_id", snap.SessionID, "lesson_id", l.ID, "error", err)
			}
		},
	}
}

type openPlaybackRequest struct {
	LessonID string `json:"lesson_id"`
}

type openPlaybackResponse struct {
	LessonID string       `json:"lesson_id"`
	Session  playbackView `json:"session"`
}

// POST /api/playback
func handleOpenPlayback(w http.ResponseWriter, r *http.Request) {
	var req openPlaybackRequest
	if err := strictDecode(w, r, &req); err != nil || req.LessonID == "" {
		writeJSONError(w, http.StatusBadRequest, "lesson_id is required")
		return
	}
	id, _ := middleware.GetIdentityFromContext(r.Context())

	result, err := orchestrators.ExecuteOpenPlayback(r.Context(), orchestrators.OpenPlaybackInput{
		LessonID: req.LessonID,
		ViewerID: id.UserID,
	}, orchestrators.OpenPlaybackDeps{
		LessonStore: stores.LessonStore,
		Players:     players,
		HooksFor:    playbackHooks,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.PlaybackSessionsOpened.Inc()
	writeJSON(w, http.StatusCreated, openPlaybackResponse{
		LessonID: result.Lesson.ID,
		Session:  newPlaybackView(result.Snapshot),
	})
}

// withSession resolves {id} to a live session.
func withSession(fn func(w http.ResponseWriter, r *http.Request, s *player.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := players.Get(r.PathValue("id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		fn(w, r, s)
	}
}

func writeSnapshot(w http.ResponseWriter, snap player.Snapshot, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlaybackView(snap))
}

// GET /api/playback/{id}
var handleGetPlayback = withSession(func(w http.ResponseWriter, r *http.Request, s *player.Session) {
	writeSnapshot(w, s.Snapshot(), nil)
})

// DELETE /api/playback/{id}
func handleClosePlayback(w http.ResponseWriter, r *http.Request) {
	if err := players.Close(r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attemptRequest struct {
	Attempt uint64 `json:"attempt"`
}

// POST /api/playback/{id}/ready
var handlePlaybackReady = withSession(func(w http.ResponseWriter, r *http.Request, s *player.Session) {
	var req attemptRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	snap, err := s.Ready(req.Attempt)
	writeSnapshot(w, snap, err)
})

type playbackErrorRequest struct {
	Attempt uint64 `json:"attempt"`
	Reason  string `json:"reason"`
}

// POST /api/playback/{id}/error
var handlePlaybackError = withSession(func(w http.ResponseWriter, r *http.Request, s *player.Session) {
	var req playbackErrorRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Reason == "" {
		req.Reason = "player reported an error"
	}
	snap, err := s.Fail(req.Attempt, req.Reason)
	writeSnapshot(w, snap, err)
})

type progressRequest struct {
	Attempt uint64              `json:"attempt"`
	Kind    player.ProgressKind `json:"kind"`
	Seconds float64             `json:"seconds"`
}

// POST /api/playback/{id}/progress
var handlePlaybackProgress = withSession(func(w http.ResponseWriter, r *http.Request, s *player.Session) {
	var req progressRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	snap, err := s.ReportProgress(req.Attempt, player.ProgressEvent{Kind: req.Kind, Seconds: req.Seconds})
	writeSnapshot(w, snap, err)
})

type durationRequest struct {
	Attempt uint64  `json:"attempt"`
	Seconds float64 `json:"seconds"`
}

// POST /api/playback/{id}/duration
var handlePlaybackDuration = withSession(func(w http.ResponseWriter, r *http.Request, s *player.Session) {
	var req durationRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	snap, err := s.ReportDuration(req.Attempt, req.Seconds)
	writeSnapshot(w, snap, err)
})

// controlsRequest applies whichever fields are set, in field order.
type controlsRequest struct {
	Playing *bool    `json:"playing"`
	Volume  *float64 `json:"volume"`
	Muted   *bool    `json:"muted"`
	Seek    *float64 `json:"seek"`
}

// POST /api/playback/{id}/controls
var handlePlaybackControls = withSession(func(w http.ResponseWriter, r *http.Request, s *player.Session) {
	var req controlsRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	snap := s.Snapshot()
	var err error
	if req.Playing != nil {
		if *req.Playing {
			snap, err = s.Play()
		} else {
			snap, err = s.Pause()
		}
	}
	if err == nil && req.Volume != nil {
		snap, err = s.SetVolume(*req.Volume)
	}
	if err == nil && req.Muted != nil {
		snap, err = s.SetMuted(*req.Muted)
	}
	if err == nil && req.Seek != nil {
		snap, err = s.Seek(*req.Seek)
	}
	writeSnapshot(w, snap, err)
})

// POST /api/playback/{id}/restart
var handlePlaybackRestart = withSession(func(w http.ResponseWriter, r *http.Request, s *player.Session) {
	snap, err := s.Restart()
	writeSnapshot(w, snap, err)
})

// GET /api/admin/playback-health[?window=168h]
func handlePlaybackHealth(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeJSONError(w, http.StatusBadRequest, "window must be a positive duration such as 24h")
			return
		}
		window = d
	}
	result, err := projections.QueryGetPlaybackHealth(r.Context(), projections.GetPlaybackHealthQuery{
		Window: window,
		Now:    timeNow(),
	}, projections.GetPlaybackHealthDeps{
		EventStore:  stores.PlaybackStore,
		LessonStore: stores.LessonStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type playbackEventView struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	Kind       playback.Kind `json:"kind"`
	SourceURL  string        `json:"source_url,omitempty"`
	SourceType string        `json:"source_type,omitempty"`
	Attempt    uint64        `json:"attempt"`
	Detail     string        `json:"detail,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// GET /api/admin/lessons/{id}/events[?limit=N]
func handleLessonEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := stores.PlaybackStore.ListByLesson(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		internalError(w, err)
		return
	}
	views := make([]playbackEventView, 0, len(events))
	for _, e := range events {
		views = append(views, playbackEventView{
			ID:         e.ID,
			SessionID:  e.SessionID,
			Kind:       e.Kind,
			SourceURL:  e.SourceURL,
			SourceType: e.SourceType,
			Attempt:    e.Attempt,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}
