// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
)

// JSONExporter exports conversations as indented JSON. The document is
// {"conversation": {...}, "messages": [...], "exported_at": "..."}.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Conversation
	ExportedAt string `json:"exported_at"`
}

// Export converts conv to JSON.
func (e *JSONExporter) Export(conv Conversation) ([]byte, error) {
	conv.Messages = filterMessages(conv.Messages, e.options)
	if len(conv.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	doc := jsonDocument{
		Conversation: conv,
		ExportedAt:   e.options.now().UTC().Format("2006-01-02T15:04:05Z"),
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
