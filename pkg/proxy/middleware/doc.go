// Package middleware provides the HTTP middleware chain of the PromptLens
// listener.
//
// The chain, outermost first:
//
//	handler = RecoveryMiddleware(
//	    RequestIDMiddleware(
//	        LoggingMiddleware(logger)(
//	            proxyHandler)))
//
// # Request IDs
//
// RequestIDMiddleware reuses a client supplied X-Request-ID or generates a
// UUID. The id is stored with logging.WithRequestID so every diagnostics
// line of the request carries it, and the JSONL log can include it when
// logging.include_request_id is set. Responses are not modified.
//
// # Logging
//
// LoggingMiddleware writes one line per request:
//
//	{
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "method": "POST",
//	  "path": "/v1/chat/completions",
//	  "status": 200,
//	  "bytes": 5123,
//	  "latency_ms": 1250,
//	  "request_id": "550e8400-e29b-41d4-a716-446655440000"
//	}
//
// The wrapped writer implements Unwrap, so streamed responses can still be
// flushed through http.ResponseController.
//
// # Recovery
//
// RecoveryMiddleware converts panics into a 500 with an OpenAI error body,
// unless the response has already started.
package middleware
