// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a conversation transcript to a file.
//
// # Key Types
//
//   - Conversation: a summary plus its messages
//   - Exporter: format interface (Markdown, JSON)
//   - Options: output directory and what to include
//
// # Usage
//
//	conv := export.Conversation{Summary: summary, Messages: ctrl.Transcript().Messages()}
//	path, err := export.ExportToFile(conv, export.NewMarkdownExporter(nil), nil)
package export
