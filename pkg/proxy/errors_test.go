package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unavailable", &UpstreamError{Kind: UpstreamUnavailable, Err: errors.New("connection refused")}, http.StatusBadGateway},
		{"timeout", &UpstreamError{Kind: UpstreamTimeout, Err: errors.New("deadline")}, http.StatusGatewayTimeout},
		{"too large", fmt.Errorf("read: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge},
		{"read body", fmt.Errorf("%w: reset", errReadBody), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := HandleError(tt.err)
			if got := resp.Error.HTTPStatusCode(); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, HandleError(&UpstreamError{Kind: UpstreamUnavailable, Err: errors.New("refused")}))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	want := `{"error":{"message":"Upstream request failed","type":"bad_gateway","code":"upstream_unavailable"}}` + "\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestUpstreamError_Is(t *testing.T) {
	err := fmt.Errorf("forward: %w", &UpstreamError{Kind: UpstreamTimeout, Err: errors.New("slow")})
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Error("timeout error does not match ErrUpstreamTimeout")
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("timeout error matches ErrUpstreamUnavailable")
	}
}
