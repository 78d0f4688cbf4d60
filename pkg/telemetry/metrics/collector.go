package metrics

import (
	"time"

	"promptlens-dev/promptlens/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns every PromptLens metric and the registry they are
// exposed from.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	logMetrics     *LogMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a private registry holding the
// Go runtime and process collectors is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	return &Collector{
		config:         cfg,
		registry:       registry,
		requestMetrics: NewRequestMetrics(cfg, registry),
		logMetrics:     NewLogMetrics(cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRequest records a completed request.
//
// Parameters:
//   - typ: request classification ("chat", "completion", ...)
//   - mode: "stream" or "once"
//   - status: outcome ("ok", "upstream_error", "interrupted", "client_gone", ...)
//   - duration: time from receipt to logging
func (c *Collector) RecordRequest(typ, mode, status string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.RecordRequest(typ, mode, status, duration)
}

// RecordRelay records bytes read from the upstream and written to the client.
func (c *Collector) RecordRelay(mode string, bytesIn, bytesOut int64) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.RecordRelay(mode, bytesIn, bytesOut)
}

// RecordMalformedFrames adds n undecodable stream events.
func (c *Collector) RecordMalformedFrames(n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.requestMetrics.malformedFrames.Add(float64(n))
}

// RecordUpstreamError records an upstream failure of the given kind
// ("unavailable", "timeout", "interrupted").
func (c *Collector) RecordUpstreamError(kind string) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.upstreamErrors.WithLabelValues(kind).Inc()
}

// RecordAppend records one JSONL append. kinds lists the kind of each
// entry written and truncated the kinds whose entry was truncated.
func (c *Collector) RecordAppend(err error, kinds []string, truncated []string) {
	if !c.enabled() {
		return
	}
	c.logMetrics.RecordAppend(err, kinds, truncated)
}

// RecordRotation records a log rotation.
func (c *Collector) RecordRotation() {
	if !c.enabled() {
		return
	}
	c.logMetrics.rotations.Inc()
}

// RecordPruned records removed log segments.
func (c *Collector) RecordPruned(n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.logMetrics.pruned.Add(float64(n))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
