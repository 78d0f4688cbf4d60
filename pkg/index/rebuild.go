package index

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"promptlens-dev/promptlens/pkg/jsonl"
)

// RebuildStats summarizes a rebuild.
type RebuildStats struct {
	Segments int
	Lines    int
	Indexed  int

	// Skipped counts lines without a request id or that were not entries.
	Skipped int
}

// Progress receives the number of bytes scanned so far and the total.
type Progress func(done, total int64)

// indexedLine holds the fields of a log entry the index needs.
type indexedLine struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
	Input     *struct {
		Type string `json:"type"`
	} `json:"input"`
	Output *struct {
		Type string `json:"type"`
	} `json:"output"`
	Truncated bool `json:"truncated"`
}

// Rebuild re-indexes every segment of the log whose active file is at path,
// oldest first. Existing locations of each scanned segment are dropped
// before it is read. Only entries written with a request_id field can be
// indexed.
//
// Rebuild reads files as they are; lines appended while it runs past a
// segment are not seen.
func Rebuild(ctx context.Context, store Store, path string, progress Progress) (RebuildStats, error) {
	var stats RebuildStats

	segments, err := jsonl.Segments(path)
	if err != nil {
		return stats, fmt.Errorf("failed to list segments: %w", err)
	}

	names := make([]string, 0, len(segments)+1)
	var total int64
	for i := len(segments) - 1; i >= 0; i-- {
		names = append(names, segments[i].Name)
		total += segments[i].Size
	}
	active := filepath.Base(path)
	if info, err := os.Stat(path); err == nil {
		names = append(names, active)
		total += info.Size()
	} else if !errors.Is(err, os.ErrNotExist) {
		return stats, err
	}

	dir := filepath.Dir(path)
	var done int64
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := store.DropSegment(ctx, name); err != nil {
			return stats, err
		}

		n, err := rebuildSegment(ctx, store, dir, name, &stats, func(read int64) {
			if progress != nil {
				progress(done+read, total)
			}
		})
		done += n
		if err != nil {
			return stats, fmt.Errorf("failed to index %s: %w", name, err)
		}
		stats.Segments++
	}
	return stats, nil
}

func rebuildSegment(ctx context.Context, store Store, dir, name string, stats *RebuildStats, report func(int64)) (int64, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	const batchSize = 256
	batch := make([]Location, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := store.Record(ctx, batch)
		batch = batch[:0]
		return err
	}

	r := bufio.NewReader(f)
	var offset int64
	for {
		line, readErr := r.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			stats.Lines++
			if loc, ok := locate(line, name, offset); ok {
				batch = append(batch, loc)
				stats.Indexed++
			} else {
				stats.Skipped++
			}
			offset += int64(len(line))
			report(offset)

			if len(batch) == batchSize {
				if err := flush(); err != nil {
					return offset, err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return offset, readErr
		}
	}
	return offset, flush()
}

func locate(line []byte, segment string, offset int64) (Location, bool) {
	var e indexedLine
	if err := json.Unmarshal(line, &e); err != nil || e.RequestID == "" {
		return Location{}, false
	}

	loc := Location{
		RequestID: e.RequestID,
		Segment:   segment,
		Offset:    offset,
		Length:    len(line),
		Truncated: e.Truncated,
		Timestamp: e.Timestamp,
	}
	switch {
	case e.Output != nil:
		loc.Kind, loc.Type = "output", e.Output.Type
	case e.Input != nil:
		loc.Kind, loc.Type = "input", e.Input.Type
	default:
		return Location{}, false
	}
	return loc, true
}
