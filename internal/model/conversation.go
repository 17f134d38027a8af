// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"sort"
	"time"
)

// DefaultTitle is shown in the header when no conversation is selected.
const DefaultTitle = "Linux Command Assistant"

// ErrIdentityRequired is returned by every operation that needs a signed-in
// user and a configured backend.
var ErrIdentityRequired = errors.New("identity required")

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is the signed-in user.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Valid reports whether the identity can be used for backend calls.
func (i Identity) Valid() bool {
	return i.ID != ""
}

// DisplayName returns the username, or "there" for greetings when unknown.
func (i Identity) DisplayName() string {
	if i.Username == "" {
		return "there"
	}
	return i.Username
}

// =============================================================================
// CONVERSATION SUMMARY
// =============================================================================

// ConversationSummary is one entry of the conversation registry.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SortByRecent orders summaries by UpdatedAt, newest first. Ties keep their
// relative order.
func SortByRecent(items []ConversationSummary) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
}

// IndexOf returns the position of id in items, or -1.
func IndexOf(items []ConversationSummary, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
