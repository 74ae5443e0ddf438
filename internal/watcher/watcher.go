// Package watcher triggers index rebuilds when catalog sources change on
// disk, with debouncing so a bulk copy of images causes one rebuild.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// Watcher watches catalog source paths and invokes a rebuild callback after
// changes settle.
type Watcher struct {
	paths     []string
	onRebuild func()
	debounce  time.Duration
	watcher   *fsnotify.Watcher
	logger    *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher over paths (files or directories). logger may
// be nil.
func NewWatcher(paths []string, onRebuild func(), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		paths:     paths,
		onRebuild: onRebuild,
		debounce:  defaultDebounce,
		logger:    logger,
	}
}

// Start begins watching. It returns immediately; watching stops when ctx is
// cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw
	for _, path := range w.paths {
		if path == "" {
			continue
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("cannot watch catalog path", zap.String("path", path), zap.Error(err))
		}
	}
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("catalog change", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// schedule resets the debounce timer; the rebuild fires once events settle.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Info("catalog changed, rebuilding indexes")
		w.onRebuild()
	})
}
