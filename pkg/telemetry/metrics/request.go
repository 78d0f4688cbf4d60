package metrics

import (
	"time"

	"promptlens-dev/promptlens/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks proxied requests and the relay.
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sizeBytes       *prometheus.HistogramVec
	relayBytes      *prometheus.CounterVec
	malformedFrames prometheus.Counter
	upstreamErrors  *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of proxied requests",
			},
			[]string{"type", "mode", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"type", "mode"},
		),

		sizeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "response_size_bytes",
				Help:      "Size of relayed responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to 4MB
			},
			[]string{"mode"},
		),

		relayBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "relay_bytes_total",
				Help:      "Bytes read from the upstream (in) and written to clients (out)",
			},
			[]string{"direction"},
		),

		malformedFrames: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "malformed_frames_total",
				Help:      "Stream events that could not be decoded",
			},
		),

		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_errors_total",
				Help:      "Upstream failures by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.sizeBytes,
		rm.relayBytes,
		rm.malformedFrames,
		rm.upstreamErrors,
	)

	return rm
}

// RecordRequest records metrics for a completed request.
func (rm *RequestMetrics) RecordRequest(typ, mode, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(typ, mode, status).Inc()
	rm.requestDuration.WithLabelValues(typ, mode).Observe(duration.Seconds())
}

// RecordRelay records relayed byte counts.
func (rm *RequestMetrics) RecordRelay(mode string, bytesIn, bytesOut int64) {
	rm.relayBytes.WithLabelValues("in").Add(float64(bytesIn))
	rm.relayBytes.WithLabelValues("out").Add(float64(bytesOut))
	if bytesOut > 0 {
		rm.sizeBytes.WithLabelValues(mode).Observe(float64(bytesOut))
	}
}
