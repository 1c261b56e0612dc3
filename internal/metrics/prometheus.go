// ABOUTME: Prometheus metrics for turns, decoding, playback and the backend
// ABOUTME: Implements the conversation recorder and serves /metrics
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the client and the server
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsStarted      prometheus.Counter
	TurnsFinished     *prometheus.CounterVec
	TurnDuration      prometheus.Histogram
	FirstAudioLatency prometheus.Histogram

	// Decoding metrics
	StreamBytes prometheus.Counter
	Events      *prometheus.CounterVec

	// Playback metrics
	SegmentsPlayed prometheus.Counter
	SegmentsFailed prometheus.Counter

	// Backend metrics
	RoundsWritten       prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TurnsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterbox_turns_started_total",
			Help: "Total number of conversation turns started",
		}),
		TurnsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatterbox_turns_finished_total",
			Help: "Total number of conversation turns finished, by outcome",
		}, []string{"outcome"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatterbox_turn_duration_seconds",
			Help:    "Duration of conversation turns including playback",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}),
		FirstAudioLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatterbox_first_audio_seconds",
			Help:    "Time from sending a request to the first decoded audio segment",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),

		StreamBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterbox_stream_bytes_total",
			Help: "Total number of response stream bytes received",
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatterbox_events_total",
			Help: "Total number of decoded stream events, by kind",
		}, []string{"kind"}),

		SegmentsPlayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterbox_segments_played_total",
			Help: "Total number of audio segments played to completion",
		}),
		SegmentsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterbox_segments_failed_total",
			Help: "Total number of audio segments that failed to play",
		}),

		RoundsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatterbox_server_rounds_total",
			Help: "Total number of response rounds written by the backend",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatterbox_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatterbox_http_request_duration_seconds",
			Help:    "Duration of HTTP requests, including streamed responses",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"method", "endpoint"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) TurnStarted() {
	m.TurnsStarted.Inc()
}

func (m *Metrics) TurnFinished(outcome string, d time.Duration) {
	m.TurnsFinished.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(d.Seconds())
}

func (m *Metrics) BytesReceived(n int) {
	m.StreamBytes.Add(float64(n))
}

func (m *Metrics) EventDecoded(kind string) {
	m.Events.WithLabelValues(kind).Inc()
}

func (m *Metrics) FirstAudio(d time.Duration) {
	m.FirstAudioLatency.Observe(d.Seconds())
}

func (m *Metrics) SegmentPlayed() {
	m.SegmentsPlayed.Inc()
}

func (m *Metrics) SegmentFailed() {
	m.SegmentsFailed.Inc()
}

// RecordHTTPRequest records one handled request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}
