package scripts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a change in the scripts directory.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is one observed change to a script file.
type Change struct {
	Name string     `json:"name"`
	Kind ChangeKind `json:"kind"`
}

// Watch reports changes to top-level files of the directory until ctx is
// cancelled. fn is called from the watcher goroutine, one change at a time.
func (d *Dir) Watch(ctx context.Context, fn func(Change)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(d.root); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", d.root, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if c, ok := classify(ev); ok {
					fn(c)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func classify(ev fsnotify.Event) (Change, bool) {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return Change{}, false
	}
	switch {
	case ev.Has(fsnotify.Create):
		return Change{Name: name, Kind: ChangeAdded}, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return Change{Name: name, Kind: ChangeRemoved}, true
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Chmod):
		return Change{Name: name, Kind: ChangeModified}, true
	}
	return Change{}, false
}
