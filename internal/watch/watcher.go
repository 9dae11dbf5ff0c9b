// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch monitors a drop directory for new legal documents.
//
// Files placed in the watched directory are debounced until writes
// settle, filtered by extension, and emitted on a channel for the UI
// to upload. The directory is watched flat: subdirectories are for the
// user's own organization and are ignored.
package watch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must sit unchanged before it is
// considered fully written. Office suites and browsers write documents
// in bursts; uploading mid-write truncates them.
const DefaultDebounce = 500 * time.Millisecond

// uploadableExtensions are the document types the backend ingests.
var uploadableExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".doc":  true,
	".docx": true,
}

// Uploadable reports whether the file's extension is a supported
// document type.
func Uploadable(path string) bool {
	return uploadableExtensions[strings.ToLower(filepath.Ext(path))]
}

// Watcher monitors one directory and emits settled document paths.
type Watcher struct {
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	files    chan string
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	pending map[string]*pendingFile
}

// pendingFile tracks a file waiting out the debounce interval. The
// first-seen time fixes the emission order so a batch dropped in
// together uploads in arrival order.
type pendingFile struct {
	firstSeen  time.Time
	lastChange time.Time
}

// NewWatcher creates a watcher for dir. Start must be called to begin
// watching.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:      dir,
		debounce: DefaultDebounce,
		watcher:  fsw,
		files:    make(chan string, 16),
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]*pendingFile),
	}, nil
}

// WithDebounce overrides the settle interval.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Files returns the channel of settled document paths.
func (w *Watcher) Files() <-chan string {
	return w.files
}

// Start begins watching the directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	go w.processEvents()
	go w.processPending()
	return nil
}

// processEvents records create/write events for uploadable files.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !Uploadable(event.Name) {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			w.mu.Lock()
			now := time.Now()
			if p, ok := w.pending[event.Name]; ok {
				p.lastChange = now
			} else {
				w.pending[event.Name] = &pendingFile{firstSeen: now, lastChange: now}
			}
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %v", err)
		}
	}
}

// processPending emits files whose last change has settled past the
// debounce interval.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			type settledFile struct {
				path      string
				firstSeen time.Time
			}

			w.mu.Lock()
			var settled []settledFile
			for path, p := range w.pending {
				if now.Sub(p.lastChange) >= w.debounce {
					settled = append(settled, settledFile{path: path, firstSeen: p.firstSeen})
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			// Map iteration order is random; emit in arrival order.
			sort.Slice(settled, func(i, j int) bool {
				return settled[i].firstSeen.Before(settled[j].firstSeen)
			})

			for _, f := range settled {
				select {
				case w.files <- f.path:
				case <-w.ctx.Done():
					return
				}
			}
		}
	}
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}
