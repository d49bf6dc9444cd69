package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeStale   = "stale"
	OutcomeFailed  = "failed"
)

// Fetch holds the Prometheus collectors for image fetches. A nil *Fetch is
// valid and records nothing.
type Fetch struct {
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	live     *prometheus.GaugeVec
	inflight *prometheus.GaugeVec
}

func NewFetch(reg prometheus.Registerer) *Fetch {
	f := &Fetch{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmbview",
			Name:      "fetch_results_total",
			Help:      "Image fetch results by model and outcome.",
		}, []string{"model", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cmbview",
			Name:      "fetch_duration_seconds",
			Help:      "Round trip time of image fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"model"}),
		live: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cmbview",
			Name:      "live_resources",
			Help:      "Image resources currently held per model.",
		}, []string{"model"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cmbview",
			Name:      "fetches_in_flight",
			Help:      "Fetches issued but not yet applied or discarded.",
		}, []string{"model"}),
	}
	reg.MustRegister(f.results, f.duration, f.live, f.inflight)
	return f
}

func (f *Fetch) Started(model string) {
	if f == nil {
		return
	}
	f.inflight.WithLabelValues(model).Inc()
}

func (f *Fetch) Finished(model, outcome string, elapsed time.Duration) {
	if f == nil {
		return
	}
	f.inflight.WithLabelValues(model).Dec()
	f.results.WithLabelValues(model, outcome).Inc()
	if outcome != OutcomeStale {
		f.duration.WithLabelValues(model).Observe(elapsed.Seconds())
	}
}

func (f *Fetch) SetLive(model string, n int) {
	if f == nil {
		return
	}
	f.live.WithLabelValues(model).Set(float64(n))
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Results exposes the counter for one model and outcome.
func (f *Fetch) Results(model, outcome string) prometheus.Counter {
	return f.results.WithLabelValues(model, outcome)
}

func (f *Fetch) Live(model string) prometheus.Gauge {
	return f.live.WithLabelValues(model)
}
