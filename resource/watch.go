package resource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/stage"
)

// Watch reloads files loaded through FileSource when they change on disk.
// Each path may be a file or a directory; directories are watched so that
// editors replacing files by rename are still seen. Watching stops when
// ctx is done or the loader is closed.
func (l *Loader) Watch(ctx context.Context, paths ...string) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("resource: watch: %w", err)
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		dir := filepath.Clean(p)
		if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
			dir = filepath.Dir(dir)
		}
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("resource: watch %s: %w", dir, err)
		}
	}

	go l.watchLoop(ctx, w)
	return nil
}

func (l *Loader) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	log := stage.Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if l.reload(filepath.Clean(ev.Name)) {
				log.Debug("resource: change detected", "source", ev.Name, "op", ev.Op.String())
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("resource: watcher error", "err", err)
		}
	}
}
