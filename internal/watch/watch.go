// Package watch re-runs reconciliation whenever the service declaration file
// changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/geoffdutton/cfedge/internal/logging"
)

// Runner is one reconciliation pass.
type Runner func(ctx context.Context) error

// Watcher debounces file events on the service file and runs passes. A failed
// pass is logged and watching continues; only a watcher fault or context
// cancellation ends Run.
type Watcher struct {
	path     string
	debounce time.Duration
	run      Runner
	log      *logging.Logger
}

func New(path string, debounce time.Duration, run Runner, log *logging.Logger) *Watcher {
	return &Watcher{path: path, debounce: debounce, run: run, log: log}
}

// Run performs an initial pass, then blocks rerunning on change until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.runOnce(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer fw.Close()

	// Watch the directory: most editors replace the file on save, which
	// would silently detach a watch on the file itself.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.log.Infof("Watching %s for changes", w.path)

	changes := make(chan struct{}, 1)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-fw.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case werr, ok := <-fw.Errors:
				if !ok {
					return nil
				}
				w.log.Warnf("watcher error: %v", werr)
			}
		}
	})

	g.Go(func() error {
		debounce := time.NewTimer(w.debounce)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-changes:
				debounce.Reset(w.debounce)
			case <-debounce.C:
				w.log.Infof("Change detected in %s, reconciling", w.path)
				w.runOnce(ctx)
			}
		}
	})

	return g.Wait()
}

func (w *Watcher) runOnce(ctx context.Context) {
	if err := w.run(ctx); err != nil {
		w.log.Errorf("reconcile failed: %v", err)
	}
}
