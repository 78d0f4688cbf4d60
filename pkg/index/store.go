package index

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Lookup when nothing was recorded for a request id.
var ErrNotFound = errors.New("no entries recorded for request")

var errClosed = errors.New("store closed")

// Location is where one log line was written.
type Location struct {
	RequestID string
	Kind      string // "input" or "output"
	Type      string // request type, e.g. "chat"
	Segment   string // base name of the log file
	Offset    int64
	Length    int
	Truncated bool
	Timestamp string
}

// Store persists locations.
type Store interface {
	// Record stores locations in order.
	Record(ctx context.Context, locs []Location) error

	// Lookup returns the locations of a request in the order they were recorded.
	Lookup(ctx context.Context, requestID string) ([]Location, error)

	// Recent returns up to limit locations, most recent first.
	Recent(ctx context.Context, limit int) ([]Location, error)

	// RenameSegment moves every location in segment from to segment to.
	RenameSegment(ctx context.Context, from, to string) error

	// DropSegment forgets every location in segment.
	DropSegment(ctx context.Context, segment string) error

	Close() error
}

// StoreError describes a failed index operation.
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("index error [backend=%s, op=%s]: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}
