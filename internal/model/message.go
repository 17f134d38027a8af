// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAI    Sender = "ai"
	SenderError Sender = "error"
)

// ParseSender maps a backend sender value onto a Sender. The backend stores
// assistant messages as "bot".
func ParseSender(s string) Sender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return SenderUser
	case "bot", "ai", "assistant":
		return SenderAI
	default:
		return SenderError
	}
}

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable label for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderAI:
		return "Assistant"
	case SenderError:
		return "Error"
	default:
		return string(s)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// ConversationID is empty when the message does not belong to a
	// server-side conversation yet.
	ConversationID string `json:"conversation_id,omitempty"`

	// OriginalQuestion is set on error messages that can be retried.
	OriginalQuestion string `json:"original_question,omitempty"`
}

// NewMessage creates a message with a fresh local id.
func NewMessage(sender Sender, content, conversationID string) Message {
	return Message{
		ID:             uuid.NewString(),
		Sender:         sender,
		Content:        content,
		Timestamp:      time.Now(),
		ConversationID: conversationID,
	}
}

// NewUserMessage creates the optimistic copy of a submitted question.
func NewUserMessage(content, conversationID string) Message {
	return NewMessage(SenderUser, content, conversationID)
}

// NewAIMessage creates an assistant message.
func NewAIMessage(content, conversationID string) Message {
	return NewMessage(SenderAI, content, conversationID)
}

// NewErrorMessage creates a locally produced error entry. A non-empty
// originalQuestion makes it retryable.
func NewErrorMessage(content, conversationID, originalQuestion string) Message {
	msg := NewMessage(SenderError, content, conversationID)
	msg.OriginalQuestion = originalQuestion
	return msg
}

// IsRetryable reports whether the message offers a retry of its question.
func (m Message) IsRetryable() bool {
	return m.Sender == SenderError && m.OriginalQuestion != ""
}

// Preview returns a single-line excerpt of at most maxRunes runes.
func (m Message) Preview(maxRunes int) string {
	line := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(line)
	if len(runes) <= maxRunes {
		return line
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
