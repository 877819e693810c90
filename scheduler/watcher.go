package scheduler

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits for further writes before
// reloading. Editors typically produce bursts of write events per save.
const defaultDebounce = 500 * time.Millisecond

// Watcher watches a pipeline document and invokes a reload callback on
// change. The callback decides whether the new document is acceptable; the
// watcher only debounces and filters events.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onChange func()

	fw *fsnotify.Watcher
}

// NewWatcher watches path. onChange runs after each debounced change burst.
func NewWatcher(path string, onChange func(), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: many editors replace the file on
	// save, which drops a direct file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		debounce: defaultDebounce,
		logger:   logger,
		onChange: onChange,
		fw:       fw,
	}, nil
}

// Run processes events until ctx is done. It blocks; run it in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.fw.Close() }()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("document watch error", slog.String("error", err.Error()))

		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Info("pipeline document changed", slog.String("path", w.path))
			w.onChange()
		}
	}
}
