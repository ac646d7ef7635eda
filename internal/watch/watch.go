// Package watch flags tracked changes whose files were edited outside
// the review. It only marks conflicts; resolving them stays a human
// decision.
package watch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/patchgate-project/patchgate/internal/change"
	"github.com/patchgate-project/patchgate/internal/integrity"
	"github.com/patchgate-project/patchgate/pkg/logging"
	"github.com/patchgate-project/patchgate/pkg/model"
)

// Watcher observes the parent directories of tracked files. Directories
// rather than files are watched so editors that save via rename do not
// silently detach the watch.
type Watcher struct {
	mu      sync.Mutex
	store   *change.Store
	fsw     *fsnotify.Watcher
	tracked map[string]model.ChangeID
	dirs    map[string]int
}

// NewWatcher creates a watcher over the given store.
func NewWatcher(store *change.Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		store:   store,
		fsw:     fsw,
		tracked: make(map[string]model.ChangeID),
		dirs:    make(map[string]int),
	}, nil
}

// Track starts watching the file behind a pending record.
func (w *Watcher) Track(id model.ChangeID, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracked[abs] = id
	w.dirs[dir]++
	if w.dirs[dir] == 1 {
		if err := w.fsw.Add(dir); err != nil {
			delete(w.tracked, abs)
			w.dirs[dir]--
			return err
		}
	}
	return nil
}

// Untrack stops watching the file behind a record.
func (w *Watcher) Untrack(id model.ChangeID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, tracked := range w.tracked {
		if tracked != id {
			continue
		}
		delete(w.tracked, path)
		dir := filepath.Dir(path)
		w.dirs[dir]--
		if w.dirs[dir] <= 0 {
			delete(w.dirs, dir)
			w.fsw.Remove(dir)
		}
		return
	}
}

// Run consumes filesystem events until the context ends or the watcher
// is closed. Callers run it on its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.checkPath(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("conflict watcher error", map[string]any{"error": err.Error()})
		}
	}
}

// checkPath hashes the on-disk content of a tracked path. Bytes that
// match neither the record's original nor its proposed content mean an
// external edit, and the record flips to conflict. The store's own
// Accept/Reject writes land on one of the two hashes and never flag.
func (w *Watcher) checkPath(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	id, ok := w.tracked[abs]
	w.mu.Unlock()
	if !ok {
		return
	}

	rec, ok := w.store.Get(string(id))
	if !ok || rec.Status != model.StatusPending {
		w.Untrack(id)
		return
	}

	diskHash, err := integrity.HashFile(abs)
	if err != nil {
		// Likely mid-rename during an atomic save; the Create event for
		// the final file follows.
		return
	}
	if diskHash == rec.ContentHash || diskHash == integrity.HashContent([]byte(rec.ModifiedContent)) {
		return
	}
	w.store.MarkConflict(string(id))
}

// Close stops the watcher; a blocked Run returns once the event channel
// closes.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
