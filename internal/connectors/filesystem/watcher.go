// Package filesystem watches a local folder for PDF files to ingest.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docqa/internal/logger"
)

// ChangeType describes what happened to a watched file.
type ChangeType string

// Change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is a settled event for one PDF in the watched folder.
type Change struct {
	Type ChangeType
	Path string
}

// DefaultDebounce is how long a file must be quiet before its change is emitted.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher closed")

// Watcher reports PDF files appearing, changing or disappearing in a folder.
// Bursts of writes to one file collapse into a single change.
type Watcher struct {
	rootPath string
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// New creates a watcher for rootPath. A non-positive debounce selects DefaultDebounce.
func New(rootPath string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{rootPath: rootPath, debounce: debounce}
}

// Scan returns the PDF files already present under the root, sorted by path.
func (w *Watcher) Scan() ([]string, error) {
	if err := w.checkRoot(); err != nil {
		return nil, err
	}

	var paths []string
	err := filepath.WalkDir(w.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.rootPath && isHidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isHidden(path) && isPDF(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", w.rootPath, err)
	}
	return paths, nil
}

// Watch starts watching the root folder. The returned channel is closed
// when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	if err := w.checkRoot(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(w.rootPath); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.rootPath, err)
	}
	w.watcher = fw

	changes := make(chan Change)
	go w.run(ctx, fw, changes)
	return changes, nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, changes chan<- Change) {
	defer close(changes)

	pending := make(map[string]pendingChange)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			change := w.handleFsEvent(event)
			if change == nil {
				continue
			}
			pending[change.Path] = merge(pending[change.Path], *change)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)

		case now := <-ticker.C:
			for path, p := range pending {
				if now.Sub(p.seen) < w.debounce {
					continue
				}
				delete(pending, path)
				select {
				case changes <- p.change:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

type pendingChange struct {
	change Change
	seen   time.Time
}

// merge folds a new event into a pending one. A create followed by writes
// stays a create; a delete wins over anything before it.
func merge(prev pendingChange, next Change) pendingChange {
	if prev.change.Type == ChangeCreated && next.Type == ChangeUpdated {
		next.Type = ChangeCreated
	}
	return pendingChange{change: next, seen: time.Now()}
}

// handleFsEvent converts a filesystem event into a change, or nil when
// the event is not about a visible PDF file.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Change {
	if isHidden(event.Name) || !isPDF(event.Name) {
		return nil
	}

	switch {
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		return &Change{Type: ChangeDeleted, Path: event.Name}
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return nil
		}
		return &Change{Type: ChangeCreated, Path: event.Name}
	case event.Op.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return nil
		}
		return &Change{Type: ChangeUpdated, Path: event.Name}
	default:
		return nil
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) checkRoot() error {
	info, err := os.Stat(w.rootPath)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", w.rootPath)
	}
	return nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
