// Package metrics provides Prometheus metrics collection for PromptLens.
//
// # Metrics
//
// All names carry the configured namespace (default "promptlens"):
//
//   - requests_total{type,mode,status}: proxied requests by classification,
//     relay mode ("stream" or "once") and outcome
//   - request_duration_seconds{type,mode}: time from request receipt to logging
//   - response_size_bytes{mode}: response bytes relayed to clients
//   - relay_bytes_total{direction}: bytes read from upstream ("in") and written to clients ("out")
//   - malformed_frames_total: stream events that failed to decode
//   - upstream_errors_total{kind}: "unavailable", "timeout", "interrupted"
//   - log_appends_total{result}: JSONL appends by "ok" or "error"
//   - log_entries_total{kind}, log_entries_truncated_total{kind}: entries by "input" or "output"
//   - log_rotations_total, log_segments_pruned_total
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordRequest("chat", "stream", "ok", time.Second)
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// A nil *Collector and a collector built from a disabled config accept every
// call and record nothing.
package metrics
