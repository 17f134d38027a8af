// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the session,
// registry, transcript and controller packages.
//
// # Key Types
//
//   - Identity: the signed-in user ({id, username})
//   - Message: one transcript entry, sent by the user, the assistant or
//     produced locally as an error
//   - ConversationSummary: one row of the conversation registry
//   - Sender: message origin enumeration (user, ai, error)
//
// # Usage
//
//	msg := model.NewUserMessage("how do I list files?", convID)
//	failed := model.NewErrorMessage("Failed to get response ...", convID, msg.Content)
//	if failed.IsRetryable() {
//		// offer the retry affordance
//	}
package model
