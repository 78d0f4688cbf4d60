// Package logging configures operator diagnostics for PromptLens.
//
// Diagnostics are structured log/slog records written to stderr, separate
// from the JSONL prompt log. The handler chain adds the request id carried
// by the context and masks credentials:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Redact: true})
//	ctx = logging.WithRequestID(ctx, id)
//	logger.InfoContext(ctx, "upstream request", "status", 200) // includes request_id
//
// # Redaction
//
// With Redact enabled, values are scrubbed before they reach the output:
//
//   - API keys: sk-abc123xyz → sk-***
//   - Bearer tokens: Bearer abc.def → Bearer ***
//   - Values of sensitive keys (authorization, api_key, token, ...) keep a four character prefix
//   - http.Header values have credential headers replaced with ***
package logging
