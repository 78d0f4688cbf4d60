package index

import (
	"context"
	"log/slog"

	"promptlens-dev/promptlens/pkg/jsonl"
	"promptlens-dev/promptlens/pkg/record"
)

// Recorder feeds a Store from log writer callbacks. Its methods match the
// OnAppend and OnRotate hooks of jsonl.Config and the OnRemove hook of
// jsonl.Pruner, which run in writer order so renames never race inserts.
type Recorder struct {
	store     Store
	requestID func(ctx context.Context) string
	logger    *slog.Logger
}

// NewRecorder creates a recorder. requestID extracts the id of the call
// being logged from the append context.
func NewRecorder(store Store, requestID func(ctx context.Context) string) *Recorder {
	return &Recorder{
		store:     store,
		requestID: requestID,
		logger:    slog.Default().With("component", "index.recorder"),
	}
}

// Appended records one location per record.Entry in the batch.
// Other entry types are skipped.
func (r *Recorder) Appended(ctx context.Context, res jsonl.AppendResult, entries []any) {
	id := r.requestID(ctx)

	locs := make([]Location, 0, len(entries))
	for i, e := range entries {
		entry, ok := e.(record.Entry)
		if !ok || i >= len(res.Offsets) {
			continue
		}
		reqID := entry.RequestID
		if reqID == "" {
			reqID = id
		}
		if reqID == "" {
			continue
		}
		locs = append(locs, Location{
			RequestID: reqID,
			Kind:      string(entry.Kind()),
			Type:      entry.Type(),
			Segment:   res.Segment,
			Offset:    res.Offsets[i],
			Length:    res.Lengths[i],
			Truncated: entry.Truncated,
			Timestamp: entry.Timestamp,
		})
	}

	if err := r.store.Record(ctx, locs); err != nil {
		r.logger.Error("failed to index log entries",
			"request_id", id,
			"segment", res.Segment,
			"error", err,
		)
	}
}

// Rotated renames the locations of the rotated active file.
func (r *Recorder) Rotated(active, rotated string) {
	if err := r.store.RenameSegment(context.Background(), active, rotated); err != nil {
		r.logger.Error("failed to rename indexed segment",
			"from", active,
			"to", rotated,
			"error", err,
		)
	}
}

// Removed forgets the locations of a pruned segment.
func (r *Recorder) Removed(segment string) {
	if err := r.store.DropSegment(context.Background(), segment); err != nil {
		r.logger.Error("failed to drop indexed segment",
			"segment", segment,
			"error", err,
		)
	}
}
