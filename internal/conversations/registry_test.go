// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/model"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func summary(id string, minutes int) model.ConversationSummary {
	return model.ConversationSummary{
		ID:        id,
		Title:     "Conversation " + id,
		CreatedAt: t0,
		UpdatedAt: t0.Add(time.Duration(minutes) * time.Minute),
	}
}

// fakeBackend serves canned results. A non-nil listGate blocks List until
// it is closed.
type fakeBackend struct {
	mu       sync.Mutex
	baseURL  string
	list     []model.ConversationSummary
	listErr  error
	listGate chan struct{}
	created  *model.ConversationSummary
	renamed  *api.ConversationUpdate
	err      error
	calls    []string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) BaseURL() string { return f.baseURL }

func (f *fakeBackend) ListConversations(ctx context.Context, _ string) ([]model.ConversationSummary, error) {
	f.record("list")
	f.mu.Lock()
	gate, items, err := f.listGate, clone(f.list), f.listErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return items, err
}

func (f *fakeBackend) CreateConversation(context.Context, string) (*model.ConversationSummary, error) {
	f.record("create")
	return f.created, f.err
}

func (f *fakeBackend) RenameConversation(_ context.Context, _, _, title string) (*api.ConversationUpdate, error) {
	f.record("rename:" + title)
	return f.renamed, f.err
}

func (f *fakeBackend) DeleteConversation(_ context.Context, _, id string) error {
	f.record("delete:" + id)
	return f.err
}

func (f *fakeBackend) ClearConversations(context.Context, string) (*api.ClearResult, error) {
	f.record("clear")
	if f.err != nil {
		return nil, f.err
	}
	return &api.ClearResult{ConversationsDeleted: 2}, nil
}

type fakeConn bool

func (c fakeConn) Connected() bool { return bool(c) }

func newTestRegistry(backend *fakeBackend) *Registry {
	if backend.baseURL == "" {
		backend.baseURL = "http://localhost:8000"
	}
	return NewRegistry(backend, fakeConn(true), nil)
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestList_ReplacesLocalList(t *testing.T) {
	backend := &fakeBackend{list: []model.ConversationSummary{summary("a", 1), summary("b", 5), summary("a", 9)}}
	reg := newTestRegistry(backend)

	require.NoError(t, reg.List(context.Background(), "u1"))

	items := reg.Snapshot()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)

	latest, ok := reg.MostRecent()
	require.True(t, ok)
	assert.Equal(t, "b", latest.ID)
}

func TestList_RequiresIdentityAndURL(t *testing.T) {
	backend := &fakeBackend{}
	reg := newTestRegistry(backend)

	assert.ErrorIs(t, reg.List(context.Background(), ""), model.ErrIdentityRequired)

	backend.baseURL = ""
	reg = NewRegistry(backend, nil, nil)
	assert.ErrorIs(t, reg.List(context.Background(), "u1"), model.ErrIdentityRequired)
	assert.Empty(t, backend.calls)
}

func TestList_StaleResponseDiscardedAfterDelete(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{list: []model.ConversationSummary{summary("a", 1), summary("b", 2)}}
	reg := newTestRegistry(backend)
	require.NoError(t, reg.List(context.Background(), "u1"))

	backend.mu.Lock()
	backend.listGate = gate
	backend.mu.Unlock()

	listDone := make(chan error, 1)
	go func() { listDone <- reg.List(context.Background(), "u1") }()

	assert.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.calls) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, reg.Delete(context.Background(), "u1", "a"))
	close(gate)

	assert.ErrorIs(t, <-listDone, ErrStale)
	items := reg.Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)
}

// =============================================================================
// CREATE / RENAME TESTS
// =============================================================================

func TestCreate_PrependsNewConversation(t *testing.T) {
	created := summary("new", 10)
	backend := &fakeBackend{list: []model.ConversationSummary{summary("a", 1)}, created: &created}
	reg := newTestRegistry(backend)
	require.NoError(t, reg.List(context.Background(), "u1"))

	events, unsub := reg.Subscribe()
	defer unsub()

	got, err := reg.Create(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)
	assert.Equal(t, []string{"new", "a"}, ids(reg.Snapshot()))
	assert.Equal(t, Event{Kind: EventCreated, ConversationID: "new"}, <-events)
}

func TestCreate_NotConnected(t *testing.T) {
	backend := &fakeBackend{baseURL: "http://localhost:8000"}
	reg := NewRegistry(backend, fakeConn(false), nil)

	_, err := reg.Create(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, backend.calls)
}

func TestRename_KeepsMessageCount(t *testing.T) {
	a := summary("a", 1)
	a.MessageCount = 7
	later := t0.Add(time.Hour)
	backend := &fakeBackend{
		list:    []model.ConversationSummary{a},
		renamed: &api.ConversationUpdate{ID: "a", Title: "Disk usage", UpdatedAt: later},
	}
	reg := newTestRegistry(backend)
	require.NoError(t, reg.List(context.Background(), "u1"))

	require.NoError(t, reg.Rename(context.Background(), "u1", "a", "  Disk usage  "))

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "Disk usage", got.Title)
	assert.Equal(t, later, got.UpdatedAt)
	assert.Equal(t, t0, got.CreatedAt)
	assert.Equal(t, 7, got.MessageCount)
	assert.Contains(t, backend.calls, "rename:Disk usage")
}

func TestRename_EmptyTitle(t *testing.T) {
	backend := &fakeBackend{}
	reg := newTestRegistry(backend)

	assert.ErrorIs(t, reg.Rename(context.Background(), "u1", "a", "   "), ErrEmptyTitle)
	assert.Empty(t, backend.calls)
}

func TestRename_FailureCarriesDetail(t *testing.T) {
	backend := &fakeBackend{
		list: []model.ConversationSummary{summary("a", 1)},
		err:  &api.ClientError{Type: api.ErrTypeServer, Status: 403, Detail: "Not authorized to update this conversation"},
	}
	reg := newTestRegistry(backend)
	require.NoError(t, reg.List(context.Background(), "u1"))
	before := reg.Snapshot()

	err := reg.Rename(context.Background(), "u1", "a", "New")
	require.Error(t, err)
	assert.Equal(t, "Not authorized to update this conversation", api.DetailOf(err))
	assert.Equal(t, before, reg.Snapshot())
}

// =============================================================================
// DELETE / CLEAR TESTS
// =============================================================================

func TestDelete_RemovesEntry(t *testing.T) {
	backend := &fakeBackend{list: []model.ConversationSummary{summary("a", 1), summary("b", 2)}}
	reg := newTestRegistry(backend)
	require.NoError(t, reg.List(context.Background(), "u1"))

	require.NoError(t, reg.Delete(context.Background(), "u1", "a"))
	_, ok := reg.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestDelete_FailureRestoresSnapshot(t *testing.T) {
	backend := &fakeBackend{list: []model.ConversationSummary{summary("a", 1), summary("b", 2), summary("c", 3)}}
	reg := newTestRegistry(backend)
	require.NoError(t, reg.List(context.Background(), "u1"))
	before := reg.Snapshot()

	events, unsub := reg.Subscribe()
	defer unsub()

	backend.err = &api.ClientError{Type: api.ErrTypeServer, Status: 404, Detail: "Conversation not found"}
	err := reg.Delete(context.Background(), "u1", "b")
	require.Error(t, err)

	assert.Equal(t, before, reg.Snapshot())
	assert.Equal(t, EventDeleted, (<-events).Kind)
	assert.Equal(t, EventRestored, (<-events).Kind)
}

func TestClearAll_RefetchFailureLeavesEmptyList(t *testing.T) {
	backend := &fakeBackend{list: []model.ConversationSummary{summary("a", 1)}}
	reg := newTestRegistry(backend)
	require.NoError(t, reg.List(context.Background(), "u1"))

	backend.listErr = errors.New("connection reset")
	result, err := reg.ClearAll(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ConversationsDeleted)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []string{"list", "clear", "list"}, backend.calls)
}

func TestClearAll_ServerFailureKeepsList(t *testing.T) {
	backend := &fakeBackend{list: []model.ConversationSummary{summary("a", 1)}}
	reg := newTestRegistry(backend)
	require.NoError(t, reg.List(context.Background(), "u1"))

	backend.err = errors.New("boom")
	_, err := reg.ClearAll(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, 1, reg.Len())
}

// =============================================================================
// HTTP INTEGRATION
// =============================================================================

func TestRegistry_AgainstHTTPBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/conversations/u1":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": "c1", "title": "Old", "created_at": "2025-03-01T12:00:00", "updated_at": "2025-03-01T12:00:00", "message_count": 2},
				{"id": "c2", "title": "Newer", "created_at": "2025-03-01T12:00:00", "updated_at": "2025-03-02T08:30:00.123456", "message_count": 4},
			})
		case r.Method == http.MethodPut && r.URL.Path == "/conversations/c1/u1":
			json.NewEncoder(w).Encode(map[string]any{
				"id": "c1", "title": "Renamed", "created_at": "2025-03-01T12:00:00", "updated_at": "2025-03-03T09:00:00",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: srv.URL})
	reg := NewRegistry(client, nil, nil)

	require.NoError(t, reg.List(context.Background(), "u1"))
	assert.Equal(t, []string{"c2", "c1"}, ids(reg.Sorted()))

	require.NoError(t, reg.Rename(context.Background(), "u1", "c1", "Renamed"))
	assert.Equal(t, []string{"c1", "c2"}, ids(reg.Sorted()))

	got, _ := reg.Get("c1")
	assert.Equal(t, 2, got.MessageCount)
}

func ids(items []model.ConversationSummary) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
