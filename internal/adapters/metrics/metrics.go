package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "academy",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
	}, []string{"method", "route"})

	DBQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "academy",
		Name:      "db_query_duration_seconds",
		Help:      "Database call duration in seconds by operation.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"op"})

	PlaybackSessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "academy",
		Name:      "playback_sessions_opened_total",
		Help:      "Total number of player dialogs opened.",
	})

	PlaybackFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Name:      "playback_failures_total",
		Help:      "Recoverable load failures by kind and source type.",
	}, []string{"kind", "source_type"})

	PlaybackReady = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Name:      "playback_ready_total",
		Help:      "Sources that started playing, by source type.",
	}, []string{"source_type"})

	PlaybackExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "academy",
		Name:      "playback_exhausted_total",
		Help:      "Sessions that ran out of sources and showed the unavailable state.",
	})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "academy",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	})
)

// Register adds every collector to reg. activeSessions reports the live
// playback session count when scraped.
func Register(reg prometheus.Registerer, activeSessions func() float64) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DBQueryDuration,
		PlaybackSessionsOpened,
		PlaybackFailures,
		PlaybackReady,
		PlaybackExhausted,
		RateLimited,
	)
	if activeSessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "academy",
			Name:      "playback_active_sessions",
			Help:      "Number of currently open player dialogs.",
		}, activeSessions))
	}
}
