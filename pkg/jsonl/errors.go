package jsonl

import (
	"errors"
	"fmt"
)

// ErrLogWrite is matched by every error the writer returns.
var ErrLogWrite = errors.New("log write failed")

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("writer closed")

// WriteError describes a failed log operation.
type WriteError struct {
	Op   string // "open", "encode", "write", "sync", "rotate", "close"
	Path string
	Err  error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("jsonl %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("jsonl %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrLogWrite.
func (e *WriteError) Is(target error) bool {
	return target == ErrLogWrite
}
