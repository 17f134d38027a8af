// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the persistent, observable session state: the
// signed-in identity, the backend URL and the dark-mode preference.
//
// State lives in the shared storage.KV so every linuxassist process sees
// the same session. Local writes notify subscribers immediately; writes by
// other processes are picked up by Run, which reconciles on file change
// notifications and on a fallback poll.
//
// # Usage
//
//	store, err := session.New(ctx, kv, session.Options{DefaultAPIURL: cfg.API.DefaultURL})
//	events, unsubscribe := store.Subscribe()
//	defer unsubscribe()
//	go store.Run(ctx)
//
//	for ev := range events {
//	    if ev.Kind == session.EventIdentity {
//	        if _, ok := store.Identity(); !ok {
//	            // show the login screen
//	        }
//	    }
//	}
package session
