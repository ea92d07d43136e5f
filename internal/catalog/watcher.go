// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/ManuGH/rec2g/internal/log"
)

// Watcher marks the catalog dirty when the recordings root changes on
// disk, so the scan loop rescans ahead of its fixed interval. Events
// are coalesced into a single flag; consumers drain it with
// ConsumeDirty.
type Watcher struct {
	watcher *fsnotify.Watcher
	dirty   atomic.Bool
}

// NewWatcher starts watching root.
func NewWatcher(root string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(root); err != nil {
		_ = fw.Close() // Ignore close error in error path
		return nil, fmt.Errorf("watch recordings root: %w", err)
	}

	w := &Watcher{watcher: fw}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	logger := log.WithComponent("catalog")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.dirty.Store(true)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().
				Err(err).
				Str("event", "catalog.watcher_error").
				Msg("recordings watcher error")
		}
	}
}

// ConsumeDirty reports and clears the dirty flag.
func (w *Watcher) ConsumeDirty() bool {
	return w.dirty.Swap(false)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
