// Package video holds the playback source model: URL classification, the
// fallback catalog for a lesson, and the manager that walks it.
package video

import (
	"strings"

	"github.com/samber/lo"
)

// SourceType is the transport a URL is played over.
type SourceType string

const (
	SourceMP4     SourceType = "mp4"
	SourceHLS     SourceType = "hls"
	SourceDASH    SourceType = "dash"
	SourceYouTube SourceType = "youtube"
)

// QualityAuto is the quality label used when an mp4 URL names no resolution.
const QualityAuto = "auto"

// PreloadStrategy mirrors the HTML media preload hint handed to the generic player.
type PreloadStrategy string

const (
	PreloadAuto     PreloadStrategy = "auto"
	PreloadMetadata PreloadStrategy = "metadata"
	PreloadNone     PreloadStrategy = "none"
)

// Source is a single playable URL. Treat it as immutable once built.
type Source struct {
	URL     string     `json:"url"`
	Type    SourceType `json:"type"`
	Quality string     `json:"quality,omitempty"`
}

// IsYouTube reports whether the source must be hosted by the YouTube embed.
func (s Source) IsYouTube() bool {
	return s.Type == SourceYouTube
}

// Classify returns the transport type of url by substring match.
// PRE: none
// POST: returns one of the four SourceType values, mp4 when nothing else matches
func Classify(url string) SourceType {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "youtube") || strings.Contains(u, "youtu.be"):
		return SourceYouTube
	case strings.Contains(u, ".m3u8"):
		return SourceHLS
	case strings.Contains(u, ".mpd"):
		return SourceDASH
	default:
		return SourceMP4
	}
}

// QualityLabel returns the coarse quality tag for a progressive download URL.
func QualityLabel(url string) string {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "720p"):
		return "720p"
	case strings.Contains(u, "480p"):
		return "480p"
	default:
		return QualityAuto
	}
}

// NewSource classifies url and tags mp4 entries with a quality label.
func NewSource(url string) Source {
	s := Source{URL: url, Type: Classify(url)}
	if s.Type == SourceMP4 {
		s.Quality = QualityLabel(url)
	}
	return s
}

// Config is the ordered catalog of sources for one playback session.
type Config struct {
	Primary   Source          `json:"primary"`
	Fallbacks []Source        `json:"fallbacks"`
	Preload   PreloadStrategy `json:"preload"`
}

// Sources returns the primary followed by the fallbacks in priority order.
func (c Config) Sources() []Source {
	out := make([]Source, 0, len(c.Fallbacks)+1)
	out = append(out, c.Primary)
	return append(out, c.Fallbacks...)
}

// BuildConfig classifies the primary URL and orders the fallbacks: explicit
// fallback URLs first, then raw mp4 URLs. A YouTube primary has no same-content
// mp4 sibling, so mp4 URLs are dropped entirely in that case.
// PRE: none
// POST: deterministic; blank fallback and mp4 entries are skipped
func BuildConfig(primary string, fallbackURLs, mp4URLs []string) Config {
	cfg := Config{
		Primary: NewSource(strings.TrimSpace(primary)),
		Preload: PreloadMetadata,
	}

	cfg.Fallbacks = lo.FilterMap(fallbackURLs, func(u string, _ int) (Source, bool) {
		u = strings.TrimSpace(u)
		return NewSource(u), u != ""
	})

	if cfg.Primary.IsYouTube() {
		return cfg
	}

	for _, u := range mp4URLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		cfg.Fallbacks = append(cfg.Fallbacks, Source{URL: u, Type: SourceMP4, Quality: QualityLabel(u)})
	}
	return cfg
}
