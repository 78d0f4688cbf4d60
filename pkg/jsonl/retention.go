package jsonl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls pruning of rotated segments.
type RetentionConfig struct {
	// MaxSegments is the number of rotated segments to keep, newest first.
	// 0 keeps all of them.
	MaxSegments int

	// MaxAge removes rotated segments last modified longer ago than this.
	// 0 disables age-based pruning.
	MaxAge time.Duration

	// Schedule is a standard cron expression, e.g. "0 3 * * *".
	// An empty schedule disables the scheduler; Prune can still be called.
	Schedule string
}

// Enabled reports whether any pruning rule is set.
func (c RetentionConfig) Enabled() bool {
	return c.MaxSegments > 0 || c.MaxAge > 0
}

// Segment is a rotated log file.
type Segment struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Segments lists the rotated segments of the active file at path, newest first.
func Segments(path string) ([]Segment, error) {
	dir, active := filepath.Dir(path), filepath.Base(path)

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var segments []Segment
	for _, de := range dirEntries {
		if de.IsDir() || !isSegmentOf(de.Name(), active) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		segments = append(segments, Segment{
			Name:    de.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(segments, func(i, j int) bool {
		if !segments[i].ModTime.Equal(segments[j].ModTime) {
			return segments[i].ModTime.After(segments[j].ModTime)
		}
		return segments[i].Name > segments[j].Name
	})
	return segments, nil
}

// Pruner deletes rotated segments according to a RetentionConfig.
type Pruner struct {
	path   string
	config RetentionConfig
	logger *slog.Logger
	now    func() time.Time

	// OnRemove is called with the base name of every deleted segment.
	OnRemove func(segment string)

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner for the segments rotated from the active file at path.
func NewPruner(path string, config RetentionConfig) *Pruner {
	return &Pruner{
		path:   path,
		config: config,
		logger: slog.Default().With("component", "jsonl.retention"),
		now:    time.Now,
		cron:   cron.New(),
	}
}

// Prune deletes rotated segments beyond MaxSegments and older than MaxAge.
// The active file is never touched. It returns the number of deleted segments.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if !p.config.Enabled() {
		return 0, nil
	}

	segments, err := Segments(p.path)
	if err != nil {
		return 0, fmt.Errorf("failed to list segments: %w", err)
	}

	cutoff := time.Time{}
	if p.config.MaxAge > 0 {
		cutoff = p.now().Add(-p.config.MaxAge)
	}

	deleted := 0
	var errs []error
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		overCount := p.config.MaxSegments > 0 && i >= p.config.MaxSegments
		tooOld := !cutoff.IsZero() && seg.ModTime.Before(cutoff)
		if !overCount && !tooOld {
			continue
		}

		if err := os.Remove(filepath.Join(filepath.Dir(p.path), seg.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		deleted++

		p.logger.Debug("pruned log segment",
			"segment", seg.Name,
			"mod_time", seg.ModTime,
			"over_count", overCount,
			"too_old", tooOld,
		)
		if p.OnRemove != nil {
			p.OnRemove(seg.Name)
		}
	}

	return deleted, errors.Join(errs...)
}

// Start schedules Prune on the configured cron expression. It returns
// immediately; the schedule stops when ctx is cancelled or Stop is called.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Schedule == "" || !p.config.Enabled() {
		p.logger.Info("log retention not configured, skipping scheduler")
		return nil
	}
	if p.running {
		return fmt.Errorf("retention scheduler already running")
	}

	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.Schedule, err)
	}

	if _, err := p.cron.AddFunc(p.config.Schedule, func() {
		p.run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("log retention scheduler started",
		"schedule", p.config.Schedule,
		"max_segments", p.config.MaxSegments,
		"max_age", p.config.MaxAge.String(),
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

func (p *Pruner) run(ctx context.Context) {
	deleted, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("scheduled pruning failed",
			"deleted_count", deleted,
			"error", err,
		)
		return
	}

	if deleted > 0 {
		p.logger.Info("scheduled pruning completed", "deleted_count", deleted)
	} else {
		p.logger.Debug("scheduled pruning completed, no segments deleted")
	}
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("log retention scheduler stopped")
	}
}

// NextRun returns the next scheduled prune, or nil when not scheduled.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.cron.Entries()
	if !p.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
