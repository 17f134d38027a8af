// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversations keeps the signed-in user's conversation list in
// sync with the backend.
//
// # Key Types
//
//   - Registry: the ordered list of conversation summaries and the CRUD
//     operations that change it
//   - Backend: the subset of the API client the registry calls
//   - Event: change notification delivered to subscribers
//
// Replacements of the list are sequenced, so a slow List response never
// overwrites a newer delete, rollback or clear.
//
// # Usage
//
//	reg := conversations.NewRegistry(client, monitor, logger)
//	if err := reg.List(ctx, identity.ID); err != nil {
//	    return err
//	}
//	if latest, ok := reg.MostRecent(); ok {
//	    fmt.Println(latest.Title)
//	}
package conversations
