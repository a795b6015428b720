package video

import (
	"github.com/samber/mo"
)

// PlayerType tells the caller which playback widget to mount for the current source.
type PlayerType string

const (
	// PlayerNativeEmbed is the YouTube iframe embed.
	PlayerNativeEmbed PlayerType = "native-embed"
	// PlayerGeneric is the HTML5-media style player for mp4/hls/dash.
	PlayerGeneric PlayerType = "generic-player"
)

// DefaultMaxRetries is the in-place retry budget for non-YouTube sources.
const DefaultMaxRetries = 1

// youtubeMaxRetries caps in-place retries for YouTube; its failures are rarely transient.
const youtubeMaxRetries = 1

// Manager walks an ordered source list, retrying the current source in place
// before advancing to the next one.
// INVARIANT: index is a valid position in sources whenever sources is non-empty.
// INVARIANT: retries is zero immediately after every advance.
// Not safe for concurrent use; the owning session serializes access.
type Manager struct {
	sources    []Source
	index      int
	retries    int
	maxRetries int
	exhausted  bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxRetries sets the retry budget for non-YouTube sources. Negative values clamp to 0.
func WithMaxRetries(n int) ManagerOption {
	return func(m *Manager) {
		if n < 0 {
			n = 0
		}
		m.maxRetries = n
	}
}

// NewManager creates a manager positioned on the first source.
// PRE: sources is in priority order
// POST: Index() == 0, RetryCount() == 0
func NewManager(sources []Source, opts ...ManagerOption) *Manager {
	m := &Manager{
		sources:    append([]Source(nil), sources...),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len returns the number of sources in the catalog.
func (m *Manager) Len() int { return len(m.sources) }

// Index returns the position of the current source.
func (m *Manager) Index() int { return m.index }

// RetryCount returns the number of in-place retries spent on the current source.
func (m *Manager) RetryCount() int { return m.retries }

// Exhausted reports whether Next has run off the end of the catalog.
func (m *Manager) Exhausted() bool { return m.exhausted || len(m.sources) == 0 }

// Current returns the source at the current index, or none for an empty catalog.
func (m *Manager) Current() mo.Option[Source] {
	if len(m.sources) == 0 {
		return mo.None[Source]()
	}
	return mo.Some(m.sources[m.index])
}

// Next advances to the following source and resets the retry count.
// PRE: none
// POST: on the last source returns none and marks the manager exhausted
func (m *Manager) Next() mo.Option[Source] {
	if len(m.sources) == 0 || m.index >= len(m.sources)-1 {
		m.exhausted = true
		return mo.None[Source]()
	}
	m.index++
	m.retries = 0
	return mo.Some(m.sources[m.index])
}

// CanRetry reports whether the current source may be retried without advancing.
func (m *Manager) CanRetry() bool {
	cur, ok := m.Current().Get()
	if !ok || m.exhausted {
		return false
	}
	budget := m.maxRetries
	if cur.IsYouTube() {
		budget = youtubeMaxRetries
	}
	return m.retries < budget
}

// Retry spends one in-place retry on the current source when the budget
// allows, otherwise escalates to Next.
// POST: returns the source to load next, or none when the catalog is exhausted
func (m *Manager) Retry() mo.Option[Source] {
	if m.CanRetry() {
		m.retries++
		return m.Current()
	}
	return m.Next()
}

// Reset rewinds to the first source with a fresh retry budget.
// POST: Index() == 0, RetryCount() == 0, Exhausted() == (Len() == 0)
func (m *Manager) Reset() {
	m.index = 0
	m.retries = 0
	m.exhausted = false
}

// PreferredPlayer returns the widget able to host the current source. A generic
// HTML5 player cannot host the YouTube iframe, so the caller swaps widgets
// whenever the active source type changes.
func (m *Manager) PreferredPlayer() PlayerType {
	if cur, ok := m.Current().Get(); ok && cur.IsYouTube() {
		return PlayerNativeEmbed
	}
	return PlayerGeneric
}

// ObfuscatedURL returns the current URL, normalized for YouTube sources.
func (m *Manager) ObfuscatedURL() string {
	cur, ok := m.Current().Get()
	if !ok {
		return ""
	}
	if cur.IsYouTube() {
		return NormalizeYouTubeURL(cur.URL)
	}
	return cur.URL
}
