// Package metrics holds the Prometheus collectors of the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	runs              *prometheus.CounterVec
	activeRuns        prometheus.Gauge
	stageDuration     *prometheus.HistogramVec
	transcodeDuration prometheus.Histogram
	uploadedArtifacts *prometheus.CounterVec
	uploadedBytes     prometheus.Counter
	cleanupFailures   prometheus.Counter
}

// New registers every collector on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsfn_runs_total",
			Help: "Pipeline runs by outcome code (ok on success).",
		}, []string{"code"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hlsfn_active_runs",
			Help: "Number of runs currently in progress in this process.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hlsfn_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"stage"}),
		transcodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlsfn_transcode_duration_seconds",
			Help:    "Time taken by ffmpeg to produce the HLS rendition.",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		uploadedArtifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsfn_uploaded_artifacts_total",
			Help: "Artifacts uploaded to object storage by kind.",
		}, []string{"kind"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlsfn_uploaded_bytes_total",
			Help: "Bytes uploaded to object storage.",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlsfn_cleanup_failures_total",
			Help: "Scratch directories that could not be removed.",
		}),
	}

	reg.MustRegister(
		m.runs,
		m.activeRuns,
		m.stageDuration,
		m.transcodeDuration,
		m.uploadedArtifacts,
		m.uploadedBytes,
		m.cleanupFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RunStarted increments the active gauge and returns the func that ends the
// run with the given outcome code.
func (m *Metrics) RunStarted() func(code string) {
	if m == nil {
		return func(string) {}
	}
	m.activeRuns.Inc()
	return func(code string) {
		m.activeRuns.Dec()
		if code == "" {
			code = "ok"
		}
		m.runs.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if stage == "transcode" {
		m.transcodeDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ArtifactUploaded(kind string, size int64) {
	if m == nil {
		return
	}
	m.uploadedArtifacts.WithLabelValues(kind).Inc()
	if size > 0 {
		m.uploadedBytes.Add(float64(size))
	}
}

func (m *Metrics) CleanupFailed() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}
