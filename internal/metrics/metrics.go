// Package metrics provides Prometheus metrics for policypipe
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the pipeline and HTTP adapter
type Metrics struct {
	ConversionsTotal      *prometheus.CounterVec
	StageDuration         *prometheus.HistogramVec
	PagesComposed         prometheus.Counter
	PublishedVersions     prometheus.Counter
	DiffBlocksHighlighted prometheus.Counter
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry, so
// several instances can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.ConversionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policypipe_conversions_total",
			Help: "Total number of document conversions",
		},
		[]string{"status"},
	)

	m.StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policypipe_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	m.PagesComposed = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "policypipe_pages_composed_total",
			Help: "Total number of PDF pages composed",
		},
	)

	m.PublishedVersions = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "policypipe_published_versions_total",
			Help: "Total number of policy versions published",
		},
	)

	m.DiffBlocksHighlighted = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "policypipe_diff_blocks_highlighted_total",
			Help: "Total number of blocks highlighted by visual diffs",
		},
	)

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policypipe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policypipe_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordConversion counts a finished conversion.
func (m *Metrics) RecordConversion(err error, pages int) {
	if err != nil {
		m.ConversionsTotal.WithLabelValues("error").Inc()
		return
	}
	m.ConversionsTotal.WithLabelValues("ok").Inc()
	m.PagesComposed.Add(float64(pages))
}
