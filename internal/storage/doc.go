// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persistent key-value store behind the
// session state.
//
// The store is a single SQLite file (pure Go driver, no cgo) that every
// linuxassist process on the machine opens. Writes from one process are
// visible to the others on their next read, and Watch reports when the file
// changed underneath so readers know to look.
//
// # Usage
//
//	kv, err := storage.Open(ctx, cfg.Session.StatePath)
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
//	_ = kv.Set(ctx, "linuxAssistantDarkMode", "true")
//	changes, err := kv.Watch(ctx, 50*time.Millisecond)
package storage
