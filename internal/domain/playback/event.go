package playback

import (
	"errors"
	"time"
)

// Kind classifies a playback diagnostics event.
type Kind string

const (
	KindTimeout   Kind = "timeout"   // no ready/error signal before the load deadline
	KindError     Kind = "error"     // the widget reported a playback failure
	KindReady     Kind = "ready"     // a source started playing
	KindExhausted Kind = "exhausted" // every source failed; the viewer saw "video unavailable"
)

// MaxDetailLength bounds the free-text detail captured from the widget.
const MaxDetailLength = 500

// Event records one outcome of a load attempt.
type Event struct {
	ID         string
	SessionID  string
	LessonID   string
	Kind       Kind
	SourceURL  string
	SourceType string
	Attempt    uint64
	Detail     string
	CreatedAt  time.Time
}

// IsFailure reports whether the event counts against a lesson's health.
func (e *Event) IsFailure() bool {
	return e.Kind == KindTimeout || e.Kind == KindError || e.Kind == KindExhausted
}

// Validate checks the event's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise;
// an over-long Detail is truncated rather than rejected
func (e *Event) Validate() error {
	if e.SessionID == "" {
		return errors.New("playback event session ID cannot be empty")
	}
	if e.LessonID == "" {
		return errors.New("playback event lesson ID cannot be empty")
	}
	switch e.Kind {
	case KindTimeout, KindError, KindReady, KindExhausted:
	default:
		return errors.New("playback event kind is invalid")
	}
	if len(e.Detail) > MaxDetailLength {
		e.Detail = e.Detail[:MaxDetailLength]
	}
	return nil
}
