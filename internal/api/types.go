// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/linuxassist/internal/model"
)

// =============================================================================
// TIMESTAMPS
// =============================================================================

// Timestamp decodes the backend's ISO-8601 datetimes. The backend emits
// naive UTC values ("2024-05-01T12:00:00.123456") so a missing zone is read
// as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// =============================================================================
// REQUESTS
// =============================================================================

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AskRequest is the body of POST /ask. An empty ConversationID asks the
// backend to start a new conversation.
type AskRequest struct {
	Question       string `json:"question"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type createConversationRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title,omitempty"`
}

type renameConversationRequest struct {
	Title string `json:"title"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// AskResponse is a validated /ask answer.
type AskResponse struct {
	Answer         string `json:"answer" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
}

type loginResponse struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id" validate:"required"`
	Username string `json:"username"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id" validate:"required"`
}

type conversationDTO struct {
	ID           string    `json:"id" validate:"required"`
	Title        string    `json:"title"`
	MessageCount *int      `json:"message_count" validate:"omitempty,gte=0"`
	CreatedAt    Timestamp `json:"created_at"`
	UpdatedAt    Timestamp `json:"updated_at"`
}

func (d conversationDTO) toModel() model.ConversationSummary {
	summary := model.ConversationSummary{
		ID:        d.ID,
		Title:     d.Title,
		CreatedAt: d.CreatedAt.Time,
		UpdatedAt: d.UpdatedAt.Time,
	}
	if d.MessageCount != nil {
		summary.MessageCount = *d.MessageCount
	}
	return summary
}

type messageDTO struct {
	ID        string    `json:"id" validate:"required"`
	Sender    string    `json:"sender" validate:"required"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

type conversationDetailDTO struct {
	ID       string       `json:"id" validate:"required"`
	Title    string       `json:"title"`
	Messages []messageDTO `json:"messages" validate:"dive"`
}

// ConversationUpdate is the backend's view of a renamed conversation. It
// has no message count; callers keep their own.
type ConversationUpdate struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HealthStatus is the parsed /health body. Fields are best effort: any 2xx
// counts as healthy.
type HealthStatus struct {
	Status   string
	ModelAPI string
}

// ClearResult reports how much a clear-all removed.
type ClearResult struct {
	Message              string `json:"message"`
	ConversationsDeleted int    `json:"conversations_deleted"`
	MessagesDeleted      int    `json:"messages_deleted"`
}
