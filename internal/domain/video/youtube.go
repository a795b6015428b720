package video

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoYouTubeID is returned when a URL carries no recognisable video ID.
var ErrNoYouTubeID = errors.New("could not extract YouTube video ID from URL")

var youtubeIDRegex = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/|youtube-nocookie\.com/embed/)([a-zA-Z0-9_-]{11})`)

// youtubeKeptParams are the only query parameters that survive normalization.
var youtubeKeptParams = []string{"t"}

// ExtractYouTubeID parses the 11-character video ID out of any of the watch,
// short-link, embed or shorts URL forms.
// PRE: none
// POST: returns the ID, or ErrNoYouTubeID
func ExtractYouTubeID(raw string) (string, error) {
	m := youtubeIDRegex.FindStringSubmatch(raw)
	if len(m) < 2 {
		return "", ErrNoYouTubeID
	}
	return m[1], nil
}

// NormalizeYouTubeURL rewrites a YouTube URL into the single canonical
// https://www.youtube.com/watch?v=<id> form, dropping tracking parameters
// (si, feature, utm_*, pp, ...) and keeping only the start offset.
// PRE: none
// POST: unrecognised input is returned unchanged
func NormalizeYouTubeURL(raw string) string {
	id, err := ExtractYouTubeID(raw)
	if err != nil {
		return raw
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}

	var b strings.Builder
	b.WriteString("https://www.youtube.com/watch?v=")
	b.WriteString(id)
	q := u.Query()
	for _, key := range youtubeKeptParams {
		if v := q.Get(key); v != "" {
			b.WriteString("&" + key + "=" + url.QueryEscape(v))
		}
	}
	return b.String()
}

// EmbedURL returns the privacy-enhanced iframe URL for a video ID.
// PRE: id is an 11-character YouTube ID; startSeconds >= 0
func EmbedURL(id string, startSeconds int) string {
	u := "https://www.youtube-nocookie.com/embed/" + id + "?enablejsapi=1&rel=0"
	if startSeconds > 0 {
		u += fmt.Sprintf("&start=%d", startSeconds)
	}
	return u
}
