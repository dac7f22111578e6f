// Package metrics provides Prometheus instrumentation for the build
// cycle and the resolver's HTTP surface. Scrape at GET /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/sportsgrid/internal/scheduler"
)

// BuildDuration tracks how long one scheduler refresh cycle takes,
// labeled by outcome (ok/error).
var BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "sportsgrid_build_duration_seconds",
	Help:    "Time to complete one ingest→filter→pad→assign→build→render cycle.",
	Buckets: prometheus.DefBuckets,
}, []string{"outcome"})

// DroppedEvents counts events dropped during the most recent build, by
// the filter+assigner combined (observed as a single gauge per cycle).
var DroppedEvents = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "sportsgrid_dropped_events",
	Help: "Events excluded by the filter or dropped by lane assignment in the latest build.",
})

// AdmittedEvents counts events that survived filtering in the latest build.
var AdmittedEvents = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "sportsgrid_admitted_events",
	Help: "Events admitted by the filter in the latest build.",
})

// TuneOutcomes counts resolver tune() results by kind (redirect/slate/no_content/not_found).
var TuneOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sportsgrid_tune_outcomes_total",
	Help: "Resolver tune() outcomes by kind.",
}, []string{"kind"})

// HTTPRequests counts resolver HTTP requests by path and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sportsgrid_http_requests_total",
	Help: "Total resolver HTTP requests handled.",
}, []string{"path", "status"})

// Handler returns the Prometheus scrape handler, mounted at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder builds a scheduler.Recorder wired to the package-level
// collectors above, so the scheduler package itself stays free of the
// prometheus dependency.
func Recorder() scheduler.Recorder {
	return scheduler.Recorder{
		ObserveBuildDuration: func(d time.Duration, err error) {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			BuildDuration.WithLabelValues(outcome).Observe(d.Seconds())
		},
		ObserveDropped: func(n int) {
			DroppedEvents.Set(float64(n))
		},
		ObserveEventCount: func(n int) {
			AdmittedEvents.Set(float64(n))
		},
	}
}

// ObserveTune records one resolver tune() outcome.
func ObserveTune(kind string) {
	TuneOutcomes.WithLabelValues(kind).Inc()
}
