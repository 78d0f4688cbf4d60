package jsonl

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// segmentWatcher flags the writer stale when the active file is renamed or
// removed behind its back (logrotate, manual cleanup).
type segmentWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	stale   *atomic.Bool
	logger  *slog.Logger

	stopOnce sync.Once
	doneCh   chan struct{}
}

func newSegmentWatcher(path string, stale *atomic.Bool, logger *slog.Logger) (*segmentWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	// Watch the directory: events on a renamed file are not reported under
	// its old name on every platform.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	sw := &segmentWatcher{
		watcher: watcher,
		path:    filepath.Clean(path),
		stale:   stale,
		logger:  logger,
		doneCh:  make(chan struct{}),
	}
	go sw.run()

	return sw, nil
}

func (sw *segmentWatcher) run() {
	defer close(sw.doneCh)

	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != sw.path {
				continue
			}
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				sw.logger.Debug("active log file moved",
					"path", event.Name,
					"op", event.Op.String(),
				)
				sw.stale.Store(true)
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Error("log file watcher error", "error", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (sw *segmentWatcher) Close() error {
	var err error
	sw.stopOnce.Do(func() {
		err = sw.watcher.Close()
		<-sw.doneCh
	})
	return err
}
