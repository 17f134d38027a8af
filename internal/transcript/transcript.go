// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the messages of the selected conversation.
//
// A Transcript belongs to exactly one conversation id, or to none while a
// new conversation has not been created on the server yet. Loads are
// generation-tagged: a load that finishes after a newer load, reset or
// adopt is dropped.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/pubsub"
)

// GenericWelcome is shown when the user has no conversations at all.
const GenericWelcome = "Hello! I'm your Linux command assistant. Ask me anything about Linux commands and I'll help you out!"

// ErrSuperseded is returned by LoadForConversation when its result was
// dropped in favour of a newer change.
var ErrSuperseded = errors.New("transcript load superseded")

// Welcome returns the greeting shown in an empty conversation.
func Welcome(identity model.Identity) string {
	return fmt.Sprintf("Hi %s, I'm here to assist you with Linux commands! Ask me anything.", identity.DisplayName())
}

// Loader fetches the stored messages of a conversation. *api.Client
// implements it.
type Loader interface {
	ConversationMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error)
}

// Owner identifies what a transcript shows at one moment: the conversation
// id plus the generation. Any load, reset, clear or adopt invalidates it.
type Owner struct {
	ConversationID string
	Generation     uint64
}

// Transcript is safe for concurrent use.
type Transcript struct {
	loader Loader
	logger *zap.Logger

	mu             sync.RWMutex
	conversationID string
	messages       []model.Message
	generation     uint64

	hub *pubsub.Hub[struct{}]
}

// New creates an empty transcript.
func New(loader Loader, logger *zap.Logger) *Transcript {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcript{
		loader: loader,
		logger: logger.Named("transcript"),
		hub:    pubsub.NewHub[struct{}](),
	}
}

// Subscribe signals every change. Receivers re-read Messages.
func (t *Transcript) Subscribe() (<-chan struct{}, func()) {
	return t.hub.Subscribe()
}

func (t *Transcript) changed() {
	t.hub.Publish(struct{}{})
}

// LoadForConversation switches to conversationID and fetches its messages.
// Failures become a single error entry in the transcript; the error is
// also returned.
func (t *Transcript) LoadForConversation(ctx context.Context, identity model.Identity, conversationID string) error {
	if !identity.Valid() {
		return model.ErrIdentityRequired
	}

	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.conversationID = conversationID
	t.messages = nil
	t.mu.Unlock()
	t.changed()

	msgs, err := t.loader.ConversationMessages(ctx, identity.ID, conversationID)

	var next []model.Message
	switch {
	case err == nil && len(msgs) == 0:
		next = []model.Message{model.NewAIMessage(Welcome(identity), conversationID)}
	case err == nil:
		next = msgs
	case api.StatusCode(err) != 0:
		next = []model.Message{model.NewErrorMessage("Failed to load messages. Status: "+api.StatusTextOf(err), conversationID, "")}
	default:
		next = []model.Message{model.NewErrorMessage("Error loading messages: "+err.Error(), conversationID, "")}
	}

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		t.logger.Debug("dropping superseded load", zap.String("conversation_id", conversationID))
		return ErrSuperseded
	}
	t.messages = next
	t.mu.Unlock()
	t.changed()

	if err != nil {
		t.logger.Warn("failed to load messages", zap.String("conversation_id", conversationID), zap.Error(err))
		return fmt.Errorf("load messages: %w", err)
	}
	return nil
}

// Reset detaches the transcript from any conversation. With no
// conversations at all it shows the generic welcome.
func (t *Transcript) Reset(hasAnyConversations bool) {
	t.mu.Lock()
	t.generation++
	t.conversationID = ""
	if hasAnyConversations {
		t.messages = nil
	} else {
		t.messages = []model.Message{model.NewAIMessage(GenericWelcome, "")}
	}
	t.mu.Unlock()
	t.changed()
}

// AppendLocal adds a message produced on this side.
func (t *Transcript) AppendLocal(msg model.Message) {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	t.changed()
}

// Owner returns the current owner.
func (t *Transcript) Owner() Owner {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Owner{ConversationID: t.conversationID, Generation: t.generation}
}

// AppendFor appends msg only while owner is still current. It reports
// whether the message was added.
func (t *Transcript) AppendFor(owner Owner, msg model.Message) bool {
	t.mu.Lock()
	if !t.owns(owner) {
		t.mu.Unlock()
		t.logger.Debug("dropping message for a replaced transcript",
			zap.String("conversation_id", owner.ConversationID), zap.String("sender", msg.Sender.String()))
		return false
	}
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	t.changed()
	return true
}

// owns reports whether owner is current. Callers hold mu.
func (t *Transcript) owns(owner Owner) bool {
	return owner.Generation == t.generation && owner.ConversationID == t.conversationID
}

// ReplaceErrorWithSuccess swaps the most recent error entry for
// originalQuestion with msg, in place. It reports whether one was found.
func (t *Transcript) ReplaceErrorWithSuccess(originalQuestion string, msg model.Message) bool {
	return t.replaceError(nil, originalQuestion, msg)
}

// ReplaceErrorFor is ReplaceErrorWithSuccess restricted to owner.
func (t *Transcript) ReplaceErrorFor(owner Owner, originalQuestion string, msg model.Message) bool {
	return t.replaceError(&owner, originalQuestion, msg)
}

func (t *Transcript) replaceError(owner *Owner, originalQuestion string, msg model.Message) bool {
	t.mu.Lock()
	if owner != nil && !t.owns(*owner) {
		t.mu.Unlock()
		t.logger.Debug("dropping retry answer for a replaced transcript", zap.String("question", originalQuestion))
		return false
	}
	idx := -1
	for i := len(t.messages) - 1; i >= 0; i-- {
		m := t.messages[i]
		if m.Sender == model.SenderError && m.OriginalQuestion == originalQuestion {
			idx = i
			break
		}
	}
	if idx >= 0 {
		t.messages[idx] = msg
	}
	t.mu.Unlock()

	if idx < 0 {
		t.logger.Warn("no error message to replace", zap.String("question", originalQuestion))
		return false
	}
	t.changed()
	return true
}

// Adopt takes ownership of conversationID without reloading. Used when the
// server created a conversation while answering.
func (t *Transcript) Adopt(conversationID string) {
	t.adopt(nil, conversationID)
}

// AdoptFor is Adopt restricted to owner. It reports whether the transcript
// now belongs to conversationID.
func (t *Transcript) AdoptFor(owner Owner, conversationID string) bool {
	return t.adopt(&owner, conversationID)
}

func (t *Transcript) adopt(owner *Owner, conversationID string) bool {
	t.mu.Lock()
	if owner != nil && !t.owns(*owner) {
		t.mu.Unlock()
		return false
	}
	if t.conversationID == conversationID {
		t.mu.Unlock()
		return true
	}
	t.generation++
	t.conversationID = conversationID
	for i := range t.messages {
		if t.messages[i].ConversationID == "" {
			t.messages[i].ConversationID = conversationID
		}
	}
	t.mu.Unlock()
	t.changed()
	return true
}

// Clear empties the transcript without a welcome, for example on logout.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.generation++
	t.conversationID = ""
	t.messages = nil
	t.mu.Unlock()
	t.changed()
}

// ConversationID returns the owning conversation, or "" for none.
func (t *Transcript) ConversationID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conversationID
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []model.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
