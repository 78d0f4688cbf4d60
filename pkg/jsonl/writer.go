package jsonl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Config configures a Writer.
type Config struct {
	// Dir is the directory holding the active file and rotated segments.
	// It is created when missing.
	Dir string

	// Filename is the name of the active file (default: promptlens.jsonl).
	Filename string

	// MaxFileBytes is the size limit of the active file. Zero disables rotation.
	MaxFileBytes int64

	// FileMode is used when creating files (default: 0644).
	FileMode os.FileMode

	// Namer names rotated segments (default: TimestampNamer).
	Namer Namer

	// Watch reopens the active file when it is renamed or removed by
	// another process.
	Watch bool

	// OnAppend is called with the write gate held after every successful append.
	OnAppend func(ctx context.Context, res AppendResult, entries []any)

	// OnRotate is called with the write gate held after a rotation, with the
	// base names of the active file and the segment it was renamed to.
	OnRotate func(active, rotated string)

	// Now returns the rotation time (default: time.Now).
	Now func() time.Time

	// Logger receives diagnostics (default: slog.Default()).
	Logger *slog.Logger
}

// DefaultFilename is the name of the active file when none is configured.
const DefaultFilename = "promptlens.jsonl"

// AppendResult describes where a batch was written.
type AppendResult struct {
	// Segment is the base name of the file the batch was written to. It is
	// the active file name; after a later rotation the lines live in the
	// segment reported to OnRotate.
	Segment string

	// Offsets and Lengths locate each line, newline included.
	Offsets []int64
	Lengths []int

	// Bytes is the total number of bytes written.
	Bytes int

	// Rotated is the base name of the segment created by a rotation that
	// happened before this batch, or "".
	Rotated string
}

// Writer appends JSON lines to a rotating file. It is safe for concurrent use.
type Writer struct {
	config Config
	path   string
	logger *slog.Logger

	// gate serializes file access; a send acquires it.
	gate chan struct{}

	file   *os.File
	size   int64
	closed bool

	stale   atomic.Bool
	watcher *segmentWatcher
}

// Open creates the log directory if needed and opens the active file for
// appending.
func Open(cfg Config) (*Writer, error) {
	if cfg.Filename == "" {
		cfg.Filename = DefaultFilename
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	if cfg.Namer == nil {
		cfg.Namer = TimestampNamer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "jsonl.writer")
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, &WriteError{Op: "open", Path: cfg.Dir, Err: err}
	}

	w := &Writer{
		config: cfg,
		path:   filepath.Join(cfg.Dir, cfg.Filename),
		logger: cfg.Logger,
		gate:   make(chan struct{}, 1),
	}
	if err := w.openActive(); err != nil {
		return nil, err
	}

	if cfg.Watch {
		watcher, err := newSegmentWatcher(w.path, &w.stale, w.logger)
		if err != nil {
			w.file.Close()
			return nil, &WriteError{Op: "open", Path: w.path, Err: err}
		}
		w.watcher = watcher
	}

	w.logger.Info("log writer opened",
		"path", w.path,
		"size", w.size,
		"max_file_bytes", cfg.MaxFileBytes,
	)

	return w, nil
}

// Path returns the path of the active file.
func (w *Writer) Path() string {
	return w.path
}

// Dir returns the log directory.
func (w *Writer) Dir() string {
	return w.config.Dir
}

// Append encodes entries as JSON lines and writes them as one contiguous
// batch. It blocks until the batch is durable (fsync) or fails; on failure
// nothing of the batch remains in the file. ctx bounds only the wait for
// the write gate and is passed to OnAppend.
func (w *Writer) Append(ctx context.Context, entries ...any) (AppendResult, error) {
	batch, lengths, err := encodeLines(entries)
	if err != nil {
		return AppendResult{}, &WriteError{Op: "encode", Err: err}
	}

	select {
	case w.gate <- struct{}{}:
	case <-ctx.Done():
		return AppendResult{}, &WriteError{Op: "write", Path: w.path, Err: ctx.Err()}
	}
	defer func() { <-w.gate }()

	if w.closed {
		return AppendResult{}, &WriteError{Op: "write", Path: w.path, Err: ErrClosed}
	}
	if len(batch) == 0 {
		return AppendResult{Segment: w.config.Filename}, nil
	}

	if err := w.reopenIfStale(); err != nil {
		return AppendResult{}, err
	}

	var res AppendResult
	if w.needsRotation(int64(len(batch))) {
		rotated, err := w.rotate()
		if err != nil {
			return AppendResult{}, err
		}
		res.Rotated = rotated
	}

	start := w.size
	if err := w.write(batch); err != nil {
		return AppendResult{}, err
	}

	res.Segment = w.config.Filename
	res.Bytes = len(batch)
	res.Lengths = lengths
	res.Offsets = make([]int64, len(lengths))
	off := start
	for i, n := range lengths {
		res.Offsets[i] = off
		off += int64(n)
	}

	if w.config.OnAppend != nil {
		w.config.OnAppend(ctx, res, entries)
	}

	return res, nil
}

// Close stops the watcher and closes the active file. Append fails afterwards.
func (w *Writer) Close() error {
	w.gate <- struct{}{}
	defer func() { <-w.gate }()

	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.watcher != nil {
		errs = append(errs, w.watcher.Close())
	}
	if w.file != nil {
		errs = append(errs, w.file.Close())
		w.file = nil
	}
	if err := errors.Join(errs...); err != nil {
		return &WriteError{Op: "close", Path: w.path, Err: err}
	}
	return nil
}

func (w *Writer) needsRotation(n int64) bool {
	max := w.config.MaxFileBytes
	return max > 0 && w.size > 0 && w.size+n > max
}

// write appends batch and syncs. A short or failed write is rolled back by
// truncating the file to its previous size.
func (w *Writer) write(batch []byte) error {
	n, err := w.file.Write(batch)
	if err == nil && n < len(batch) {
		err = io.ErrShortWrite
	}
	if err == nil {
		if err = w.file.Sync(); err != nil {
			w.rollback()
			return &WriteError{Op: "sync", Path: w.path, Err: err}
		}
		w.size += int64(n)
		return nil
	}

	w.rollback()
	return &WriteError{Op: "write", Path: w.path, Err: err}
}

func (w *Writer) rollback() {
	if err := w.file.Truncate(w.size); err != nil {
		w.logger.Error("failed to roll back partial write",
			"path", w.path,
			"size", w.size,
			"error", err,
		)
	}
}

// rotate renames the active file and opens a fresh one. It returns the base
// name of the rotated segment.
func (w *Writer) rotate() (string, error) {
	target := w.config.Namer(w.path, w.config.Now())

	if err := w.file.Close(); err != nil {
		w.logger.Warn("failed to close active file before rotation", "error", err)
	}
	w.file = nil

	if err := os.Rename(w.path, target); err != nil {
		// The current file stays active.
		if reopenErr := w.openActive(); reopenErr != nil {
			return "", &WriteError{Op: "rotate", Path: w.path, Err: errors.Join(err, reopenErr)}
		}
		return "", &WriteError{Op: "rotate", Path: w.path, Err: err}
	}

	if err := w.openActive(); err != nil {
		return "", err
	}

	rotated := filepath.Base(target)
	w.logger.Info("log file rotated",
		"path", w.path,
		"segment", rotated,
	)

	if w.config.OnRotate != nil {
		w.config.OnRotate(w.config.Filename, rotated)
	}
	return rotated, nil
}

// reopenIfStale reopens the active file when the watcher saw it renamed or
// removed and the open handle no longer refers to the file at w.path.
func (w *Writer) reopenIfStale() error {
	if w.file != nil && !w.stale.Swap(false) {
		return nil
	}

	if w.file != nil {
		current, err := w.file.Stat()
		onDisk, statErr := os.Stat(w.path)
		if err == nil && statErr == nil && os.SameFile(current, onDisk) {
			return nil
		}
		w.file.Close()
		w.file = nil
		w.logger.Warn("active log file replaced externally, reopening", "path", w.path)
	}

	return w.openActive()
}

func (w *Writer) openActive() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, w.config.FileMode)
	if err != nil {
		return &WriteError{Op: "open", Path: w.path, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return &WriteError{Op: "open", Path: w.path, Err: err}
	}

	w.file = f
	w.size = info.Size()
	return nil
}

// encodeLines encodes each entry as one line. HTML characters are not
// escaped so content is stored as sent.
func encodeLines(entries []any) ([]byte, []int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	lengths := make([]int, 0, len(entries))
	for i, e := range entries {
		before := buf.Len()
		if err := enc.Encode(e); err != nil {
			return nil, nil, fmt.Errorf("entry %d: %w", i, err)
		}
		lengths = append(lengths, buf.Len()-before)
	}
	return buf.Bytes(), lengths, nil
}
