// Package metrics exposes Prometheus metrics for the vote API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	VotesCast      prometheus.Counter
	VotesRetracted prometheus.Counter
	VoteConflicts  prometheus.Counter
	RankingSize    prometheus.Histogram
	CatalogErrors  prometheus.Counter
	LookupErrors   prometheus.Counter

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		VotesCast: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vinylclub",
			Name:      "votes_cast_total",
			Help:      "Votes successfully recorded in the ledger.",
		}),
		VotesRetracted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vinylclub",
			Name:      "votes_retracted_total",
			Help:      "Votes removed from the ledger.",
		}),
		VoteConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vinylclub",
			Name:      "vote_conflicts_total",
			Help:      "Duplicate casts absorbed as already-voted.",
		}),
		RankingSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vinylclub",
			Name:      "ranking_entries",
			Help:      "Entries returned per ranking request.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100},
		}),
		CatalogErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vinylclub",
			Name:      "catalog_errors_total",
			Help:      "Content store lookups that failed outright.",
		}),
		LookupErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vinylclub",
			Name:      "musicbrainz_errors_total",
			Help:      "MusicBrainz lookups that degraded to an empty answer.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vinylclub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vinylclub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, seconds float64) {
	m.httpRequests.WithLabelValues(method, statusClass(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method).Observe(seconds)
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
