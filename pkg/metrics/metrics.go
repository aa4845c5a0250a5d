// Package metrics exposes relay activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// knownFunctions bounds the label values for function calls.
var knownFunctions = map[string]bool{
	"get_context":               true,
	"get_current_time":          true,
	"update_interview_progress": true,
	"end_interview":             true,
}

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	registry *prometheus.Registry

	// Bridge metrics
	BridgesActive  *prometheus.GaugeVec
	BridgesTotal   *prometheus.CounterVec
	BridgeDuration *prometheus.HistogramVec

	// Audio metrics
	AudioBytesTotal    *prometheus.CounterVec
	AudioDroppedTotal  *prometheus.CounterVec
	TranscriptLines    *prometheus.CounterVec
	FunctionCallsTotal *prometheus.CounterVec

	// Backend metrics
	BackendFailures *prometheus.CounterVec
}

// New creates a Metrics instance with every metric registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "relay"
	}

	registry := prometheus.NewRegistry()

	bridgesActive := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridges_active",
			Help:      "Number of live bridges",
		},
		[]string{"kind"},
	)

	bridgesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridges_total",
			Help:      "Total number of finished bridges",
		},
		[]string{"kind", "reason"},
	)

	bridgeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bridge_duration_seconds",
			Help:      "Bridge lifetime in seconds",
			Buckets:   []float64{5, 30, 60, 300, 600, 900, 1800, 3600},
		},
		[]string{"kind"},
	)

	audioBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Audio bytes forwarded",
		},
		[]string{"direction"},
	)

	audioDroppedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Audio frames dropped",
		},
		[]string{"direction", "cause"},
	)

	transcriptLines := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_lines_total",
			Help:      "Conversation text lines received from the agent",
		},
		[]string{"role"},
	)

	functionCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_calls_total",
			Help:      "Agent function calls dispatched",
		},
		[]string{"name", "outcome"},
	)

	backendFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_failures_total",
			Help:      "Best-effort backend calls that failed",
		},
		[]string{"op"},
	)

	// Register all metrics
	registry.MustRegister(
		bridgesActive,
		bridgesTotal,
		bridgeDuration,
		audioBytesTotal,
		audioDroppedTotal,
		transcriptLines,
		functionCallsTotal,
		backendFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:           registry,
		BridgesActive:      bridgesActive,
		BridgesTotal:       bridgesTotal,
		BridgeDuration:     bridgeDuration,
		AudioBytesTotal:    audioBytesTotal,
		AudioDroppedTotal:  audioDroppedTotal,
		TranscriptLines:    transcriptLines,
		FunctionCallsTotal: functionCallsTotal,
		BackendFailures:    backendFailures,
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BridgeStarted records a new bridge.
func (m *Metrics) BridgeStarted(kind string) {
	m.BridgesActive.WithLabelValues(kind).Inc()
}

// BridgeEnded records a bridge shutting down.
func (m *Metrics) BridgeEnded(kind, reason string, d time.Duration) {
	m.BridgesActive.WithLabelValues(kind).Dec()
	m.BridgesTotal.WithLabelValues(kind, reasonLabel(reason)).Inc()
	m.BridgeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// AudioFrames records forwarded audio.
func (m *Metrics) AudioFrames(direction string, bytes int) {
	m.AudioBytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

// AudioDropped records a dropped frame.
func (m *Metrics) AudioDropped(direction, cause string) {
	m.AudioDroppedTotal.WithLabelValues(direction, cause).Inc()
}

// TranscriptLine records one conversation text line.
func (m *Metrics) TranscriptLine(role string) {
	m.TranscriptLines.WithLabelValues(role).Inc()
}

// RecordFunctionCall records a dispatched function call.
func (m *Metrics) RecordFunctionCall(name, outcome string) {
	if !knownFunctions[name] {
		name = "other"
	}
	m.FunctionCallsTotal.WithLabelValues(name, outcome).Inc()
}

// BackendFailure records a failed best-effort backend call.
func (m *Metrics) BackendFailure(op string, _ error) {
	m.BackendFailures.WithLabelValues(op).Inc()
}

// reasonLabel collapses free-form shutdown reasons into a small label set.
func reasonLabel(reason string) string {
	switch {
	case reason == "human closed", reason == "agent closed", reason == "agent connect failed", reason == "shutdown":
		return reason
	case strings.HasPrefix(reason, "drained"):
		return "drained"
	default:
		return "other"
	}
}
