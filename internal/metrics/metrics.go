// Package metrics exposes Prometheus instruments for invite attribution.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the attribution instruments
type Metrics struct {
	Attributions    *prometheus.CounterVec
	SnapshotInvites prometheus.Gauge
	FetchDuration   prometheus.Histogram
	MultiCandidate  prometheus.Counter
}

// New registers the instruments with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Attributions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invite_role_attributions_total",
				Help: "Join attributions by outcome",
			},
			[]string{"outcome"},
		),
		SnapshotInvites: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "invite_role_snapshot_invites",
				Help: "Invites in the stored snapshot",
			},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "invite_role_fetch_duration_seconds",
				Help:    "Time spent listing guild invites",
				Buckets: prometheus.DefBuckets,
			},
		),
		MultiCandidate: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "invite_role_multi_candidate_total",
				Help: "Refresh cycles where more than one invite counter increased",
			},
		),
	}
}

// NewServer serves the registry's metrics on /metrics
func NewServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
