// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across linuxassist.
//
// # Key Functions
//
// String Utilities:
//   - TruncateWidth: display-width aware truncation for sidebar titles
//   - TruncateBytes: byte-bounded excerpts of server bodies
//   - FirstLine: single-line previews of multi-line answers
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateWidth(summary.Title, 24)
//	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
//		return err
//	}
package util
