package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Ingester interface {
	IngestFile(ctx context.Context, path string) (IngestSummary, error)
}

// InboxWatcher ingests documents dropped into a directory. Editors and
// network copies emit bursts of write events for a single file, so events
// are merged per path and the file is ingested once the burst settles.
type InboxWatcher struct {
	log        *slog.Logger
	dir        string
	mergeDelay time.Duration
	ingester   Ingester

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewInboxWatcher(log *slog.Logger, dir string, mergeDelay time.Duration, ingester Ingester) *InboxWatcher {
	return &InboxWatcher{
		log:        log,
		dir:        dir,
		mergeDelay: mergeDelay,
		ingester:   ingester,
		pending:    make(map[string]*time.Timer),
	}
}

// Sync ingests every file already present in the inbox directory.
func (w *InboxWatcher) Sync(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() || hidden(e.Name()) {
			continue
		}

		w.ingest(ctx, filepath.Join(w.dir, e.Name()))
	}

	return nil
}

// Watch follows inbox events until ctx is cancelled. It returns after the
// watcher is installed; event handling continues in a background goroutine.
func (w *InboxWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				w.handleEvent(ctx, event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				w.log.Error("inbox watch error", "error", err)
			}
		}
	}()

	return nil
}

func (w *InboxWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if hidden(filepath.Base(event.Name)) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[event.Name]; ok {
		timer.Stop()
	}

	path := event.Name
	w.pending[path] = time.AfterFunc(w.mergeDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.ingest(ctx, path)
	})
}

func (w *InboxWatcher) ingest(ctx context.Context, path string) {
	summary, err := w.ingester.IngestFile(ctx, path)
	if err != nil {
		w.log.Error("failed to ingest inbox file", "path", path, "error", err)
		return
	}

	w.log.Info("ingested inbox file",
		"path", path,
		"document_id", summary.DocumentID,
		"total_chunks", summary.TotalChunks)
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
