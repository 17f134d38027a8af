// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/model"
)

var alice = model.Identity{ID: "u1", Username: "alice"}

// loaderFunc adapts a function to Loader.
type loaderFunc func(ctx context.Context, userID, conversationID string) ([]model.Message, error)

func (f loaderFunc) ConversationMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	return f(ctx, userID, conversationID)
}

func staticLoader(msgs []model.Message, err error) Loader {
	return loaderFunc(func(context.Context, string, string) ([]model.Message, error) {
		return msgs, err
	})
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_Messages(t *testing.T) {
	stored := []model.Message{
		model.NewUserMessage("how do I list files?", "c1"),
		model.NewAIMessage("Use `ls -la`.", "c1"),
	}
	tr := New(staticLoader(stored, nil), nil)

	require.NoError(t, tr.LoadForConversation(context.Background(), alice, "c1"))
	assert.Equal(t, "c1", tr.ConversationID())
	assert.Equal(t, stored, tr.Messages())
}

func TestLoad_EmptyShowsPersonalWelcome(t *testing.T) {
	tr := New(staticLoader(nil, nil), nil)

	require.NoError(t, tr.LoadForConversation(context.Background(), alice, "c1"))
	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.SenderAI, msgs[0].Sender)
	assert.Equal(t, "Hi alice, I'm here to assist you with Linux commands! Ask me anything.", msgs[0].Content)

	require.NoError(t, tr.LoadForConversation(context.Background(), model.Identity{ID: "u2"}, "c2"))
	assert.Equal(t, "Hi there, I'm here to assist you with Linux commands! Ask me anything.", tr.Messages()[0].Content)
}

func TestLoad_RequiresIdentity(t *testing.T) {
	tr := New(staticLoader(nil, nil), nil)
	assert.ErrorIs(t, tr.LoadForConversation(context.Background(), model.Identity{}, "c1"), model.ErrIdentityRequired)
	assert.Equal(t, "", tr.ConversationID())
}

func TestLoad_ServerErrorShowsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Conversation not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: srv.URL})
	tr := New(client, nil)

	err := tr.LoadForConversation(context.Background(), alice, "c1")
	require.Error(t, err)

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.SenderError, msgs[0].Sender)
	assert.Equal(t, "Failed to load messages. Status: Not Found", msgs[0].Content)
	assert.False(t, msgs[0].IsRetryable())
}

func TestLoad_NetworkErrorShowsMessage(t *testing.T) {
	tr := New(staticLoader(nil, errors.New("connection refused")), nil)

	require.Error(t, tr.LoadForConversation(context.Background(), alice, "c1"))
	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Error loading messages: connection refused", msgs[0].Content)
}

func TestLoad_SupersededLoadIsDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := loaderFunc(func(_ context.Context, _, conversationID string) ([]model.Message, error) {
		if conversationID == "slow" {
			close(started)
			<-release
		}
		return []model.Message{model.NewAIMessage("from "+conversationID, conversationID)}, nil
	})
	tr := New(slow, nil)

	done := make(chan error, 1)
	go func() { done <- tr.LoadForConversation(context.Background(), alice, "slow") }()
	<-started

	require.NoError(t, tr.LoadForConversation(context.Background(), alice, "fast"))
	close(release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, "fast", tr.ConversationID())
	assert.Equal(t, "from fast", tr.Messages()[0].Content)
}

// =============================================================================
// LOCAL MUTATION TESTS
// =============================================================================

func TestReset(t *testing.T) {
	tr := New(staticLoader(nil, nil), nil)
	require.NoError(t, tr.LoadForConversation(context.Background(), alice, "c1"))

	tr.Reset(true)
	assert.Equal(t, "", tr.ConversationID())
	assert.Equal(t, 0, tr.Len())

	tr.Reset(false)
	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, GenericWelcome, msgs[0].Content)
}

func TestReplaceErrorWithSuccess_MostRecentMatch(t *testing.T) {
	tr := New(staticLoader(nil, nil), nil)
	first := model.NewErrorMessage("timed out", "", "what is grep?")
	second := model.NewErrorMessage("timed out again", "", "what is grep?")
	tr.AppendLocal(model.NewUserMessage("what is grep?", ""))
	tr.AppendLocal(first)
	tr.AppendLocal(second)

	answer := model.NewAIMessage("grep searches text.", "c9")
	assert.True(t, tr.ReplaceErrorWithSuccess("what is grep?", answer))

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, first, msgs[1])
	assert.Equal(t, answer, msgs[2])
}

func TestReplaceErrorWithSuccess_NoMatch(t *testing.T) {
	tr := New(staticLoader(nil, nil), nil)
	tr.AppendLocal(model.NewErrorMessage("failed", "", "question a"))
	before := tr.Messages()

	assert.False(t, tr.ReplaceErrorWithSuccess("question b", model.NewAIMessage("x", "")))
	assert.Equal(t, before, tr.Messages())
}

func TestAdopt_DropsInFlightLoad(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := loaderFunc(func(context.Context, string, string) ([]model.Message, error) {
		close(started)
		<-release
		return nil, nil
	})
	tr := New(slow, nil)

	done := make(chan error, 1)
	go func() { done <- tr.LoadForConversation(context.Background(), alice, "old") }()
	<-started

	tr.AppendLocal(model.NewUserMessage("hi", ""))
	tr.Adopt("new")
	close(release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, "new", tr.ConversationID())
	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].ConversationID)
}

func TestSubscribe_SignalsChanges(t *testing.T) {
	tr := New(staticLoader(nil, nil), nil)
	ch, unsub := tr.Subscribe()
	defer unsub()

	tr.AppendLocal(model.NewUserMessage("hi", ""))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected change signal")
	}
}

func TestOwner_GuardsAgainstReload(t *testing.T) {
	tr := New(staticLoader(nil, nil), nil)
	require.NoError(t, tr.LoadForConversation(context.Background(), alice, "c1"))

	owner := tr.Owner()
	assert.Equal(t, "c1", owner.ConversationID)
	assert.True(t, tr.AppendFor(owner, model.NewUserMessage("df -h?", "c1")))
	require.Equal(t, 2, tr.Len())

	require.NoError(t, tr.LoadForConversation(context.Background(), alice, "c2"))
	assert.False(t, tr.AppendFor(owner, model.NewAIMessage("stale answer", "c1")))
	assert.False(t, tr.AdoptFor(owner, "c1"))
	assert.Equal(t, "c2", tr.ConversationID())
	require.Equal(t, 1, tr.Len())
	assert.NotEqual(t, "stale answer", tr.Messages()[0].Content)
}

func TestOwner_AdoptForCurrentOwner(t *testing.T) {
	tr := New(staticLoader(nil, nil), nil)
	tr.Reset(false)

	owner := tr.Owner()
	tr.AppendFor(owner, model.NewUserMessage("untar?", ""))
	assert.True(t, tr.AdoptFor(owner, "c9"))
	assert.Equal(t, "c9", tr.ConversationID())
	assert.False(t, tr.AdoptFor(owner, "c10"), "adopting bumps the generation")
}

func TestReplaceErrorFor_StaleOwner(t *testing.T) {
	tr := New(staticLoader(nil, nil), nil)
	owner := tr.Owner()
	tr.AppendLocal(model.NewErrorMessage("timed out", "", "q"))
	tr.Clear()
	tr.AppendLocal(model.NewErrorMessage("timed out", "", "q"))

	assert.False(t, tr.ReplaceErrorFor(owner, "q", model.NewAIMessage("a", "")))
	assert.Equal(t, model.SenderError, tr.Messages()[0].Sender)
	assert.True(t, tr.ReplaceErrorFor(tr.Owner(), "q", model.NewAIMessage("a", "")))
}
