// Package metrics counts mapping decisions and tool runs in a private
// Prometheus registry. The harness is short-lived, so metrics are exported
// as a node-exporter textfile at the end of a run rather than served.
//
// Every method is safe on a nil *Metrics, which disables collection.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/backmassage/streamplug/internal/mapper"
)

const namespace = "streamplug"

// File test outcomes.
const (
	ResultPending    = "pending"
	ResultConforms   = "conforms"
	ResultNoDecision = "no_decision"
)

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	streams  *prometheus.CounterVec
	files    *prometheus.CounterVec
	toolRuns *prometheus.CounterVec
	toolTime *prometheus.HistogramVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Streams mapped, by plugin and action.",
		}, []string{"plugin", "action"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_tested_total",
			Help:      "Files tested, by plugin and outcome.",
		}, []string{"plugin", "result"}),
		toolRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_runs_total",
			Help:      "External command runs, by plugin and outcome.",
		}, []string{"plugin", "result"}),
		toolTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_run_seconds",
			Help:      "Wall time of external command runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"plugin"}),
	}
	m.registry.MustRegister(m.streams, m.files, m.toolRuns, m.toolTime)
	return m
}

// ObserveMapping counts every decision in res, clones included.
func (m *Metrics) ObserveMapping(plugin string, res *mapper.Result) {
	if m == nil || res == nil {
		return
	}
	for _, d := range res.Decisions {
		m.streams.WithLabelValues(plugin, d.Action.String()).Inc()
	}
	if n := len(res.Clones); n > 0 {
		m.streams.WithLabelValues(plugin, "clone_output").Add(float64(n))
	}
}

// FileTested counts one file-test outcome.
func (m *Metrics) FileTested(plugin, result string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(plugin, result).Inc()
}

// ToolRun records one external command run.
func (m *Metrics) ToolRun(plugin string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.toolRuns.WithLabelValues(plugin, result).Inc()
	m.toolTime.WithLabelValues(plugin).Observe(took.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
