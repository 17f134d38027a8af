// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller drives a chat session: it submits questions, keeps
// the transcript and the conversation list consistent, and reacts to
// connectivity and session changes.
//
// # Key Types
//
//   - Controller: the session state machine (Idle, Submitting, ErrorShown)
//   - Event: notifications for the UI
//   - Backend, Session, Connectivity: what the controller depends on
//
// # Usage
//
//	ctrl := controller.New(client, store, monitor, controller.Options{Logger: logger})
//	defer ctrl.Close()
//
//	if err := ctrl.Start(ctx); err != nil {
//	    logger.Warn("initial load failed", zap.Error(err))
//	}
//	if err := ctrl.SubmitQuestion(ctx, "how do I find large files?"); err != nil {
//	    // the transcript already shows the failure
//	}
package controller
