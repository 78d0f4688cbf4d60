package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"promptlens-dev/promptlens/pkg/telemetry/logging"
)

// RequestIDHeader is the HTTP header a client can use to supply its own id.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware stores a request id in the context. A client supplied
// X-Request-ID is reused; otherwise a UUID is generated.
//
// The id is not echoed on the response: response headers come from the
// upstream only. The header itself is forwarded upstream unchanged.
//
// Example usage:
//
//	handler = RequestIDMiddleware(handler)
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}
