package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"promptlens-dev/promptlens/pkg/proxy/types"
)

// HandleError converts an error raised before an upstream response exists
// into an OpenAI-compatible error response.
//
// Example usage:
//
//	if err != nil {
//	    WriteErrorResponse(w, HandleError(err))
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return types.NewRequestTooLargeError(
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
		)
	}

	if errors.Is(err, ErrUpstreamTimeout) {
		return types.NewGatewayTimeoutError("Upstream request timed out")
	}

	if errors.Is(err, ErrUpstreamUnavailable) {
		return types.NewBadGatewayError("Upstream request failed")
	}

	if errors.Is(err, errReadBody) {
		return types.NewInvalidRequestError("Failed to read request body")
	}

	return types.NewServerError("An internal error occurred. Please try again later.")
}

// WriteErrorResponse writes errResp with the status code of its type.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errResp.Error.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(errResp)
}
