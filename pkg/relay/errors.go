package relay

import "errors"

var (
	// ErrUpstreamInterrupted is returned when the upstream body fails
	// before EOF, for example a dropped connection.
	ErrUpstreamInterrupted = errors.New("upstream response interrupted")

	// ErrUpstreamTimeout is returned when the upstream stays silent longer
	// than the idle timeout.
	ErrUpstreamTimeout = errors.New("upstream response timed out")

	// ErrClientGone is returned when the client disconnects or a write to
	// it fails.
	ErrClientGone = errors.New("client disconnected")
)
