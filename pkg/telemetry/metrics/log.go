package metrics

import (
	"promptlens-dev/promptlens/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// LogMetrics tracks the JSONL log.
type LogMetrics struct {
	appends   *prometheus.CounterVec
	entries   *prometheus.CounterVec
	truncated *prometheus.CounterVec
	rotations prometheus.Counter
	pruned    prometheus.Counter
}

// NewLogMetrics creates and registers log metrics with the provided registry.
func NewLogMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LogMetrics {
	lm := &LogMetrics{
		appends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "log_appends_total",
				Help:      "JSONL appends by result",
			},
			[]string{"result"},
		),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "log_entries_total",
				Help:      "Log entries written by kind",
			},
			[]string{"kind"},
		),
		truncated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "log_entries_truncated_total",
				Help:      "Log entries written with truncated set, by kind",
			},
			[]string{"kind"},
		),
		rotations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "log_rotations_total",
				Help:      "Log file rotations",
			},
		),
		pruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "log_segments_pruned_total",
				Help:      "Rotated log segments removed by retention",
			},
		),
	}

	registry.MustRegister(lm.appends, lm.entries, lm.truncated, lm.rotations, lm.pruned)
	return lm
}

// RecordAppend records the outcome of one append.
func (lm *LogMetrics) RecordAppend(err error, kinds, truncated []string) {
	if err != nil {
		lm.appends.WithLabelValues("error").Inc()
		return
	}
	lm.appends.WithLabelValues("ok").Inc()
	for _, k := range kinds {
		lm.entries.WithLabelValues(k).Inc()
	}
	for _, k := range truncated {
		lm.truncated.WithLabelValues(k).Inc()
	}
}
