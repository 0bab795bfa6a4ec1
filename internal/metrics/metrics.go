// Package metrics exposes Prometheus instrumentation for compiles and provider
// runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records compile and fragment metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	compiles        *prometheus.CounterVec
	compileDuration prometheus.Histogram
	fragments       *prometheus.CounterVec
	runs            *prometheus.CounterVec
}

// New creates a Collector and registers its metrics on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		compiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetry_compiles_total",
				Help: "Total number of asset compiles by result.",
			},
			[]string{"result"},
		),
		compileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "assetry_compile_duration_seconds",
				Help:    "Duration of asset compiles.",
				Buckets: prometheus.DefBuckets,
			},
		),
		fragments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetry_fragments_total",
				Help: "Total number of fragments emitted by providers, by group.",
			},
			[]string{"group"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetry_runs_total",
				Help: "Total number of provider runs by result.",
			},
			[]string{"result"},
		),
	}
}

// CompileFinished records one compile attempt.
func (c *Collector) CompileFinished(_ string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.compiles.WithLabelValues(result).Inc()
	c.compileDuration.Observe(duration.Seconds())
}

// FragmentEmitted counts a fragment kept by a run.
func (c *Collector) FragmentEmitted(group string) {
	if c == nil {
		return
	}
	if group == "" {
		group = "none"
	}
	c.fragments.WithLabelValues(group).Inc()
}

// RunFinished counts a completed provider run.
func (c *Collector) RunFinished(err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.runs.WithLabelValues(result).Inc()
}

// WriteTextfile writes every metric gathered from g to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
