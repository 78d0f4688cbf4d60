// Package telemetry groups operator-facing observability for PromptLens.
//
// # Components
//
//   - logging: structured diagnostics with request ids and credential redaction
//   - metrics: Prometheus metrics for requests, the relay and the JSONL log
//   - health: the health endpoint and component checks
//
// Diagnostics never go to the JSONL prompt log.
package telemetry
