// Package watcher reports file changes under a directory tree in debounced
// batches, for rebuild-on-change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"jsonopt/internal/paths"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// ChangeHandler is called with each batch of changes. Calls never overlap.
type ChangeHandler func(ctx context.Context, events []Event)

// Config contains watcher configuration
type Config struct {
	DebounceMs int
	// Ignore lists path segments (directory or file names) to skip.
	Ignore []string
}

// DefaultDebounce is used when Config.DebounceMs is zero.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches a directory tree
type Watcher struct {
	root    string
	config  Config
	logger  *slog.Logger
	handler ChangeHandler

	fsw   *fsnotify.Watcher
	batch *BatchDebouncer

	handleMu sync.Mutex
	ctx      context.Context
}

// New creates a watcher for root. Nothing is watched until Run.
func New(root string, config Config, logger *slog.Logger, handler ChangeHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		root:    root,
		config:  config,
		logger:  logger,
		handler: handler,
		fsw:     fsw,
	}
	delay := time.Duration(config.DebounceMs) * time.Millisecond
	if delay <= 0 {
		delay = DefaultDebounce
	}
	w.batch = NewBatchDebouncer(delay, w.emit)
	return w, nil
}

// Run watches until ctx is cancelled. Pending events are dropped on return.
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx
	defer w.fsw.Close()
	defer w.batch.Cancel()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info("Watching for changes", "root", w.root, "debounceMs", w.config.DebounceMs)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// addTree watches dir and every directory below it that is not ignored.
// fsnotify is not recursive.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.isIgnored(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", p, err)
		}
		w.logger.Debug("Watching directory", "path", p)
		return nil
	})
}

func (w *Watcher) isIgnored(p string) bool {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return false
	}
	return paths.HasIgnoredSegment(rel, w.config.Ignore)
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.isIgnored(event.Name) {
		return
	}

	var typ EventType
	switch {
	case event.Has(fsnotify.Create):
		typ = EventCreate
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("Cannot watch new directory", "path", event.Name, "error", err)
			}
		}
	case event.Has(fsnotify.Write):
		typ = EventModify
	case event.Has(fsnotify.Remove):
		typ = EventDelete
	case event.Has(fsnotify.Rename):
		typ = EventRename
	default:
		return
	}

	w.logger.Debug("File changed", "path", event.Name, "op", typ.String())
	w.batch.Add(Event{Type: typ, Path: filepath.ToSlash(event.Name), Timestamp: time.Now()})
}

func (w *Watcher) emit(events []Event) {
	w.handleMu.Lock()
	defer w.handleMu.Unlock()
	if w.ctx == nil || w.ctx.Err() != nil {
		return
	}
	w.handler(w.ctx, events)
}
