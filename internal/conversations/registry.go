// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/pubsub"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConnected is returned by Create while the backend is unreachable.
	ErrNotConnected = errors.New("not connected to the server")

	// ErrEmptyTitle is returned by Rename for a blank title.
	ErrEmptyTitle = errors.New("conversation title cannot be empty")

	// ErrStale is returned by List when a newer change superseded its result.
	ErrStale = errors.New("conversation list superseded")
)

// =============================================================================
// INTERFACES
// =============================================================================

// Backend is the part of *api.Client the registry uses.
type Backend interface {
	BaseURL() string
	ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error)
	CreateConversation(ctx context.Context, userID string) (*model.ConversationSummary, error)
	RenameConversation(ctx context.Context, userID, conversationID, title string) (*api.ConversationUpdate, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	ClearConversations(ctx context.Context, userID string) (*api.ClearResult, error)
}

// Connectivity reports backend reachability.
type Connectivity interface {
	Connected() bool
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind names what changed.
type EventKind int

const (
	EventListed EventKind = iota
	EventCreated
	EventRenamed
	EventDeleted
	EventRestored
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventListed:
		return "listed"
	case EventCreated:
		return "created"
	case EventRenamed:
		return "renamed"
	case EventDeleted:
		return "deleted"
	case EventRestored:
		return "restored"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is published after every change to the list.
type Event struct {
	Kind           EventKind
	ConversationID string
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the conversation list. Network calls run without the lock
// held; every method is safe for concurrent use.
type Registry struct {
	backend Backend
	conn    Connectivity
	logger  *zap.Logger

	mu      sync.RWMutex
	items   []model.ConversationSummary
	issued  uint64
	applied uint64

	hub *pubsub.Hub[Event]
}

// NewRegistry creates an empty registry. conn may be nil, in which case the
// backend is assumed reachable.
func NewRegistry(backend Backend, conn Connectivity, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		backend: backend,
		conn:    conn,
		logger:  logger.Named("conversations"),
		hub:     pubsub.NewHub[Event](),
	}
}

// Subscribe delivers change events.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	return r.hub.Subscribe()
}

func (r *Registry) requireIdentity(userID string) error {
	if userID == "" || r.backend.BaseURL() == "" {
		return model.ErrIdentityRequired
	}
	return nil
}

// issue reserves the next sequence number. Callers hold mu.
func (r *Registry) issue() uint64 {
	r.issued++
	return r.issued
}

// replace installs items if seq is newer than the last applied change.
// Callers hold mu.
func (r *Registry) replace(seq uint64, items []model.ConversationSummary) bool {
	if seq <= r.applied {
		return false
	}
	r.applied = seq
	r.items = items
	return true
}

// List replaces the local list with the server's.
func (r *Registry) List(ctx context.Context, userID string) error {
	if err := r.requireIdentity(userID); err != nil {
		return err
	}

	r.mu.Lock()
	seq := r.issue()
	r.mu.Unlock()

	items, err := r.backend.ListConversations(ctx, userID)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	r.mu.Lock()
	ok := r.replace(seq, dedupe(items))
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("discarding stale conversation list", zap.Uint64("seq", seq))
		return ErrStale
	}

	r.hub.Publish(Event{Kind: EventListed})
	return nil
}

// Create makes a new conversation on the server and puts it first.
func (r *Registry) Create(ctx context.Context, userID string) (model.ConversationSummary, error) {
	if err := r.requireIdentity(userID); err != nil {
		return model.ConversationSummary{}, err
	}
	if r.conn != nil && !r.conn.Connected() {
		return model.ConversationSummary{}, ErrNotConnected
	}

	created, err := r.backend.CreateConversation(ctx, userID)
	if err != nil {
		return model.ConversationSummary{}, fmt.Errorf("create conversation: %w", err)
	}

	r.mu.Lock()
	items := make([]model.ConversationSummary, 0, len(r.items)+1)
	items = append(items, *created)
	for _, it := range r.items {
		if it.ID != created.ID {
			items = append(items, it)
		}
	}
	r.replace(r.issue(), items)
	r.mu.Unlock()

	r.hub.Publish(Event{Kind: EventCreated, ConversationID: created.ID})
	return *created, nil
}

// Rename sets the title of a conversation. The server's title and
// timestamps are kept; the local message count is not touched.
func (r *Registry) Rename(ctx context.Context, userID, conversationID, title string) error {
	if err := r.requireIdentity(userID); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	updated, err := r.backend.RenameConversation(ctx, userID, conversationID, title)
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}

	r.mu.Lock()
	idx := model.IndexOf(r.items, conversationID)
	if idx >= 0 {
		items := clone(r.items)
		items[idx].Title = updated.Title
		items[idx].UpdatedAt = updated.UpdatedAt
		if !updated.CreatedAt.IsZero() {
			items[idx].CreatedAt = updated.CreatedAt
		}
		r.replace(r.issue(), items)
	}
	r.mu.Unlock()

	if idx < 0 {
		r.logger.Debug("renamed conversation is no longer listed", zap.String("conversation_id", conversationID))
		return nil
	}
	r.hub.Publish(Event{Kind: EventRenamed, ConversationID: conversationID})
	return nil
}

// Delete removes a conversation locally, then on the server. If the server
// refuses, the list is restored to exactly what it was before.
func (r *Registry) Delete(ctx context.Context, userID, conversationID string) error {
	if err := r.requireIdentity(userID); err != nil {
		return err
	}

	r.mu.Lock()
	snapshot := clone(r.items)
	items := make([]model.ConversationSummary, 0, len(r.items))
	for _, it := range r.items {
		if it.ID != conversationID {
			items = append(items, it)
		}
	}
	r.replace(r.issue(), items)
	r.mu.Unlock()
	r.hub.Publish(Event{Kind: EventDeleted, ConversationID: conversationID})

	if err := r.backend.DeleteConversation(ctx, userID, conversationID); err != nil {
		r.mu.Lock()
		r.replace(r.issue(), snapshot)
		r.mu.Unlock()
		r.logger.Warn("delete failed, restoring conversation list",
			zap.String("conversation_id", conversationID), zap.Error(err))
		r.hub.Publish(Event{Kind: EventRestored, ConversationID: conversationID})
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// ClearAll deletes every conversation on the server and refetches. A failed
// refetch leaves the list empty.
func (r *Registry) ClearAll(ctx context.Context, userID string) (*api.ClearResult, error) {
	if err := r.requireIdentity(userID); err != nil {
		return nil, err
	}

	result, err := r.backend.ClearConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("clear conversations: %w", err)
	}

	r.mu.Lock()
	seq := r.issue()
	r.mu.Unlock()

	items, listErr := r.backend.ListConversations(ctx, userID)
	if listErr != nil {
		r.logger.Warn("refetch after clear failed", zap.Error(listErr))
		items = nil
	}

	r.mu.Lock()
	r.replace(seq, dedupe(items))
	r.mu.Unlock()

	r.hub.Publish(Event{Kind: EventCleared})
	return result, nil
}

// Reset empties the list, for example on logout.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.replace(r.issue(), nil)
	r.mu.Unlock()
	r.hub.Publish(Event{Kind: EventCleared})
}

// =============================================================================
// READERS
// =============================================================================

// Snapshot returns the list in server order.
func (r *Registry) Snapshot() []model.ConversationSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.items)
}

// Sorted returns the list in display order, most recently updated first.
func (r *Registry) Sorted() []model.ConversationSummary {
	items := r.Snapshot()
	model.SortByRecent(items)
	return items
}

// MostRecent returns the most recently updated conversation.
func (r *Registry) MostRecent() (model.ConversationSummary, bool) {
	items := r.Sorted()
	if len(items) == 0 {
		return model.ConversationSummary{}, false
	}
	return items[0], true
}

// Get returns the conversation with id.
func (r *Registry) Get(id string) (model.ConversationSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := model.IndexOf(r.items, id); idx >= 0 {
		return r.items[idx], true
	}
	return model.ConversationSummary{}, false
}

// Len returns the number of conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func clone(items []model.ConversationSummary) []model.ConversationSummary {
	if items == nil {
		return nil
	}
	out := make([]model.ConversationSummary, len(items))
	copy(out, items)
	return out
}

// dedupe drops repeated ids, keeping the first.
func dedupe(items []model.ConversationSummary) []model.ConversationSummary {
	seen := make(map[string]struct{}, len(items))
	out := make([]model.ConversationSummary, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}
