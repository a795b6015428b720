package lesson

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"academy/internal/domain/video"
)

// Max length constants for user-editable fields.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 10000
	MaxURLLength         = 2048
	MaxFallbackURLs      = 5
	MaxMP4URLs           = 5
)

// ErrNotFound is returned by stores when no lesson matches.
var ErrNotFound = errors.New("lesson not found")

// Lesson is a unit of course content with a video and its fallback sources.
// PRE: PrimaryURL is an http(s) URL.
// INVARIANT: A lesson always belongs to a course via CourseID.
type Lesson struct {
	ID           string
	CourseID     string
	Title        string
	Description  string   // markdown, rendered on the lesson page
	PrimaryURL   string   // preferred source (YouTube, HLS, DASH or mp4)
	FallbackURLs []string // explicit alternates, tried in order
	MP4URLs      []string // progressive downloads, ignored for YouTube primaries
	DownloadURL  string   // optional link offered when playback is unavailable
	Position     int      // order within the course
	CreatedBy    string
	CreatedAt    time.Time
}

// Validate checks the lesson's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (l *Lesson) Validate() error {
	if l.CourseID == "" {
		return errors.New("lesson course ID cannot be empty")
	}
	if strings.TrimSpace(l.Title) == "" {
		return errors.New("lesson title cannot be empty")
	}
	if len(l.Title) > MaxTitleLength {
		return errors.New("lesson title cannot exceed 200 characters")
	}
	if len(l.Description) > MaxDescriptionLength {
		return errors.New("lesson description cannot exceed 10000 characters")
	}
	if l.PrimaryURL == "" {
		return errors.New("lesson primary video URL cannot be empty")
	}
	if err := checkVideoURL(l.PrimaryURL); err != nil {
		return err
	}
	if len(l.FallbackURLs) > MaxFallbackURLs {
		return errors.New("lesson cannot have more than 5 fallback URLs")
	}
	if len(l.MP4URLs) > MaxMP4URLs {
		return errors.New("lesson cannot have more than 5 mp4 URLs")
	}
	for _, u := range append(append([]string{}, l.FallbackURLs...), l.MP4URLs...) {
		if err := checkVideoURL(u); err != nil {
			return err
		}
	}
	if l.DownloadURL != "" {
		if err := checkURL(l.DownloadURL); err != nil {
			return err
		}
	}
	if l.Position < 0 {
		return errors.New("lesson position cannot be negative")
	}
	return nil
}

// SourceConfig builds the playback catalog for this lesson.
// POST: primary first, explicit fallbacks next, mp4 URLs last (dropped for YouTube)
func (l *Lesson) SourceConfig() video.Config {
	return video.BuildConfig(l.PrimaryURL, l.FallbackURLs, l.MP4URLs)
}

// YouTubeID returns the video ID when the primary source is hosted on YouTube.
func (l *Lesson) YouTubeID() (string, bool) {
	if video.Classify(l.PrimaryURL) != video.SourceYouTube {
		return "", false
	}
	id, err := video.ExtractYouTubeID(l.PrimaryURL)
	return id, err == nil
}

// checkVideoURL is checkURL plus: a YouTube link must name a single video.
func checkVideoURL(raw string) error {
	if err := checkURL(raw); err != nil {
		return err
	}
	if video.Classify(raw) == video.SourceYouTube {
		if _, err := video.ExtractYouTubeID(raw); err != nil {
			return errors.New("lesson YouTube URL must link to a single video")
		}
	}
	return nil
}

func checkURL(raw string) error {
	if len(raw) > MaxURLLength {
		return errors.New("lesson video URL cannot exceed 2048 characters")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("lesson video URL must be an absolute http(s) URL")
	}
	return nil
}
