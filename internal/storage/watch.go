// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reports changes to the database file (including its WAL and
// journal companions) made by any process. Bursts of events are coalesced
// into one notification after debounce. The channel is closed when ctx is
// done.
//
// The directory is watched rather than the file because SQLite replaces
// companion files and some platforms drop watches on replaced files.
func (kv *KV) Watch(ctx context.Context, debounce time.Duration) (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(kv.path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(kv.path), err)
	}

	out := make(chan struct{}, 1)
	go kv.processEvents(ctx, fsw, debounce, out)
	return out, nil
}

func (kv *KV) processEvents(ctx context.Context, fsw *fsnotify.Watcher, debounce time.Duration, out chan<- struct{}) {
	defer close(out)
	defer fsw.Close()

	base := filepath.Base(kv.path)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			select {
			case out <- struct{}{}:
			default:
				// a notification is already pending
			}

		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
		}
	}
}
