package dataset

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a session's frame when the backing CSV file changes on
// disk. Used for the default dataset so long-running servers pick up
// refreshed extracts without a restart.
type Watcher struct {
	store     Store
	sessionID string
	path      string
	log       *zap.Logger
	fw        *fsnotify.Watcher
}

// NewWatcher watches path and reloads it into store under sessionID.
func NewWatcher(store Store, sessionID, path string, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and atomic replacers remove the file
	// inode, which drops a direct file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{store: store, sessionID: sessionID, path: path, log: log, fw: fw}, nil
}

// Run blocks processing filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fw.Close()
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
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			frame, err := LoadPath(w.path)
			if err != nil {
				w.log.Warn("dataset reload failed", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.store.Put(w.sessionID, frame)
			w.log.Info("dataset reloaded",
				zap.String("session", w.sessionID),
				zap.Int("rows", frame.NumRows()))
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("dataset watcher error", zap.Error(err))
		}
	}
}
