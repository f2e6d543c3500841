// Package metrics provides Prometheus metrics for a shipper run.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName is the Pushgateway job label for every run.
const JobName = "podlog_shipper"

// Metrics holds all Prometheus metrics for a run.
type Metrics struct {
	PodsTotal        *prometheus.CounterVec
	BytesTotal       *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	RunDuration      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		PodsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podlog_pods_total",
				Help: "Pods processed by result (shipped or failed).",
			},
			[]string{"result"},
		),
		BytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podlog_bytes_total",
				Help: "Log bytes handled, before (raw) and after (gzip) compression.",
			},
			[]string{"encoding"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podlog_errors_total",
				Help: "Errors by pipeline stage and error kind.",
			},
			[]string{"stage", "kind"},
		),
		RunDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "podlog_run_duration_seconds",
				Help: "Wall time of the last run.",
			},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "podlog_last_run_timestamp_seconds",
				Help: "Unix time the last run finished.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.PodsTotal)
	reg.MustRegister(m.BytesTotal)
	reg.MustRegister(m.ErrorsTotal)
	reg.MustRegister(m.RunDuration)
	reg.MustRegister(m.LastRunTimestamp)

	return m
}

// RecordPod increments the pod counter for result ("shipped" or "failed").
func (m *Metrics) RecordPod(result string) {
	m.PodsTotal.WithLabelValues(result).Inc()
}

// RecordBytes adds raw and compressed sizes of one shipped log.
func (m *Metrics) RecordBytes(raw, compressed int) {
	m.BytesTotal.WithLabelValues("raw").Add(float64(raw))
	m.BytesTotal.WithLabelValues("gzip").Add(float64(compressed))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(stage, kind string) {
	m.ErrorsTotal.WithLabelValues(stage, kind).Inc()
}

// ObserveRun records the run's duration and completion time.
func (m *Metrics) ObserveRun(seconds float64, finishedUnix float64) {
	m.RunDuration.Set(seconds)
	m.LastRunTimestamp.Set(finishedUnix)
}

// Push sends every metric to a Pushgateway, grouped by the given labels.
func (m *Metrics) Push(ctx context.Context, url string, grouping map[string]string) error {
	p := push.New(url, JobName).Gatherer(m.registry)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
