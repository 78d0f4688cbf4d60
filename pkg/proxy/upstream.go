package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"promptlens-dev/promptlens/pkg/config"
)

// Upstream error kinds. Interrupted is only reported by the relay, once
// the response has started.
const (
	UpstreamUnavailable = "unavailable"
	UpstreamTimeout     = "timeout"
	UpstreamInterrupted = "interrupted"
)

var (
	// ErrUpstreamUnavailable is matched by errors.Is when the upstream could
	// not be reached or closed the connection before responding.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamTimeout is matched by errors.Is when the upstream did not
	// respond within upstream.timeout_s.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// UpstreamError describes a failed upstream round trip.
type UpstreamError struct {
	Kind string
	URL  string
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *UpstreamError) Is(target error) bool {
	switch e.Kind {
	case UpstreamTimeout:
		return target == ErrUpstreamTimeout
	case UpstreamUnavailable:
		return target == ErrUpstreamUnavailable
	}
	return false
}

// Upstream sends requests to the configured OpenAI-compatible endpoint.
// It never retries.
type Upstream struct {
	base    *url.URL
	headers map[string]string
	timeout time.Duration
	client  *http.Client
}

// NewUpstream creates an upstream client. timeout_s bounds connecting, the
// TLS handshake and the wait for response headers; reading the body is
// bounded per read by the relay instead, so long streams are not cut off.
func NewUpstream(cfg config.UpstreamConfig) (*Upstream, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base_url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base_url %q: must be an http(s) URL", cfg.BaseURL)
	}

	timeout := cfg.Timeout()
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifySSL, //nolint:gosec // operator opt-in via verify_ssl
		},
	}

	return &Upstream{
		base:    base,
		headers: cfg.Headers,
		timeout: timeout,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// BaseURL returns the upstream base URL.
func (u *Upstream) BaseURL() string {
	return u.base.String()
}

// IdleTimeout is the longest the relay waits for the next body read.
func (u *Upstream) IdleTimeout() time.Duration {
	return u.timeout
}

// URL returns the upstream URL for a client path and raw query.
func (u *Upstream) URL(escapedPath, rawQuery string) string {
	target := u.base.String()
	if p := strings.TrimLeft(escapedPath, "/"); p != "" {
		target += "/" + p
	}
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// Do sends one request upstream. header is the client header set; it is
// filtered before sending. The returned response body must be closed by the
// caller. Failures are *UpstreamError, except cancellation of ctx which is
// returned wrapped as is.
func (u *Upstream) Do(ctx context.Context, method, escapedPath, rawQuery string, header http.Header, body []byte) (*http.Response, error) {
	target := u.URL(escapedPath, rawQuery)

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &UpstreamError{Kind: UpstreamUnavailable, URL: target, Err: err}
	}
	req.Header = UpstreamRequestHeaders(header, u.headers)

	resp, err := u.client.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("upstream request canceled: %w", context.Canceled)
		}
		kind := UpstreamUnavailable
		if isTimeout(err) {
			kind = UpstreamTimeout
		}
		return nil, &UpstreamError{Kind: kind, URL: target, Err: err}
	}
	return resp, nil
}

// Close releases idle upstream connections.
func (u *Upstream) Close() {
	u.client.CloseIdleConnections()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
