package stream

import (
	"errors"
	"fmt"
)

// ErrMalformedFrame is matched by every MalformedFrameError.
var ErrMalformedFrame = errors.New("malformed stream frame")

// MalformedFrameError reports an event payload that could not be decoded.
type MalformedFrameError struct {
	// Payload is the raw data of the offending event, cut to a short prefix.
	Payload string

	// Cause is the underlying decode error.
	Cause error
}

// Error implements the error interface.
func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed stream frame %q: %v", e.Payload, e.Cause)
}

// Unwrap returns the decode error.
func (e *MalformedFrameError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrMalformedFrame.
func (e *MalformedFrameError) Is(target error) bool {
	return target == ErrMalformedFrame
}

// UpstreamEventError is recorded when the upstream reports an error inside the stream.
type UpstreamEventError struct {
	Message string
}

// Error implements the error interface.
func (e *UpstreamEventError) Error() string {
	return fmt.Sprintf("upstream error: %s", e.Message)
}

func newMalformedFrameError(payload []byte, cause error) *MalformedFrameError {
	const maxPayload = 120
	p := payload
	if len(p) > maxPayload {
		p = p[:maxPayload]
	}
	return &MalformedFrameError{Payload: string(p), Cause: cause}
}
