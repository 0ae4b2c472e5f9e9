package watch

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/codevault/codevault/internal/cverr"
)

// Watcher is a running fsnotify-backed adapter that feeds a ChangeQueue
// from file-system events under one root directory.
type Watcher struct {
	fsw       *fsnotify.Watcher
	queue     *ChangeQueue
	root      string
	supported func(path string) bool
	skipDir   func(name string) bool
	done      chan struct{}
}

// NewWatcher starts watching root (recursively) for changes to files
// supported accepts, feeding queue. skipDir, if non-nil, excludes
// directories by base name (e.g. ".git", "node_modules") from the walk.
func NewWatcher(root string, queue *ChangeQueue, supported func(path string) bool, skipDir func(name string) bool) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "create file watcher", err)
	}

	w := &Watcher{
		fsw:       fsw,
		queue:     queue,
		root:      root,
		supported: supported,
		skipDir:   skipDir,
		done:      make(chan struct{}),
	}

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir != nil && path != root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		rel = event.Name
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if w.supported == nil || w.supported(event.Name) {
			w.queue.OnDelete(rel)
		}
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
			return
		}
		if w.supported == nil || w.supported(event.Name) {
			w.queue.OnChange(rel)
		}
	case event.Has(fsnotify.Write):
		if w.supported == nil || w.supported(event.Name) {
			w.queue.OnChange(rel)
		}
	}
}

// Close stops the underlying fsnotify watcher and waits for its event
// loop goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
