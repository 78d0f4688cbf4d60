package types

import "net/http"

// ErrorResponse is the OpenAI-style error body PromptLens writes when it
// cannot produce an upstream response itself. Upstream error bodies are
// relayed untouched and never wrapped in this type.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Param is the name of the parameter that caused the error (if applicable).
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error types written by the proxy.
const (
	// ErrorTypeInvalidRequest indicates a request PromptLens could not read (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeRequestTooLarge indicates a body over server.max_body_bytes (413).
	ErrorTypeRequestTooLarge = "request_too_large"

	// ErrorTypeServerError indicates an internal failure (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeBadGateway indicates the upstream could not be reached (502).
	ErrorTypeBadGateway = "bad_gateway"

	// ErrorTypeGatewayTimeout indicates the upstream did not answer in time (504).
	ErrorTypeGatewayTimeout = "gateway_timeout"
)

// Error codes.
const (
	CodeInvalidBody         = "invalid_body"
	CodeRequestTooLarge     = "request_too_large"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUpstreamTimeout     = "upstream_timeout"
	CodeInternalError       = "internal_error"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError creates an error response for unreadable requests (400).
func NewInvalidRequestError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, "", CodeInvalidBody)
}

// NewRequestTooLargeError creates an error response for oversized bodies (413).
func NewRequestTooLargeError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeRequestTooLarge, "", CodeRequestTooLarge)
}

// NewServerError creates an error response for internal server errors (500).
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewBadGatewayError creates an error response for unreachable upstreams (502).
func NewBadGatewayError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, "", CodeUpstreamUnavailable)
}

// NewGatewayTimeoutError creates an error response for upstream timeouts (504).
func NewGatewayTimeoutError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeGatewayTimeout, "", CodeUpstreamTimeout)
}

// HTTPStatusCode returns the HTTP status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
