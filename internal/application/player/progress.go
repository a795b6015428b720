package player

import "academy/internal/domain/video"

// ProgressKind tags which widget produced a playback position report.
type ProgressKind string

const (
	// ProgressScrubber comes from the generic player's scrubber (seconds played).
	ProgressScrubber ProgressKind = "scrubber-progress"
	// ProgressWidget comes from the YouTube embed's own progress callback.
	ProgressWidget ProgressKind = "widget-progress"
)

// ProgressEvent is a playback position report from the mounted widget.
type ProgressEvent struct {
	Kind    ProgressKind `json:"kind"`
	Seconds float64      `json:"seconds"`
}

// ProgressKindFor returns the progress kind the given widget emits.
func ProgressKindFor(p video.PlayerType) ProgressKind {
	if p == video.PlayerNativeEmbed {
		return ProgressWidget
	}
	return ProgressScrubber
}

// NewProgressEvent builds a report tagged for the given widget.
func NewProgressEvent(p video.PlayerType, seconds float64) ProgressEvent {
	return ProgressEvent{Kind: ProgressKindFor(p), Seconds: seconds}
}
