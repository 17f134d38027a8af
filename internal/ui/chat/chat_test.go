// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/connectivity"
	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/export"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/session"
	"github.com/jeranaias/linuxassist/internal/storage"
	"github.com/jeranaias/linuxassist/internal/ui/styles"
)

// =============================================================================
// COMMAND PARSING
// =============================================================================

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  Command
		ok    bool
	}{
		{"/new", Command{Name: "new"}, true},
		{"  /Rename  Disk space  ", Command{Name: "rename", Arg: "Disk space"}, true},
		{"/url http://10.0.0.2:8000", Command{Name: "url", Arg: "http://10.0.0.2:8000"}, true},
		{"/", Command{}, false},
		{"how do I list files?", Command{}, false},
		{"", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseCommand(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLastRetryable(t *testing.T) {
	msgs := []model.Message{
		model.NewErrorMessage("first failure", "", "first"),
		model.NewAIMessage("ok", ""),
		model.NewErrorMessage("second failure", "", "second"),
		model.NewErrorMessage("Session expired", "", ""),
	}
	q, ok := lastRetryable(msgs)
	assert.True(t, ok)
	assert.Equal(t, "second", q)

	_, ok = lastRetryable(msgs[1:2])
	assert.False(t, ok)
}

func TestDescribeError(t *testing.T) {
	assert.Empty(t, describeError(OpAsk, controller.ErrEmptyQuestion))
	assert.Empty(t, describeError(OpAsk, controller.ErrSessionExpired))
	assert.Equal(t, "Still waiting for the previous answer", describeError(OpAsk, controller.ErrBusy))
	assert.Equal(t, "Please wait a moment before reconnecting", describeError(OpReconnect, connectivity.ErrRetryThrottled))
	assert.Equal(t, "Failed to delete conversation: boom", describeError(OpDelete, errors.New("boom")))
	assert.Empty(t, describeError(OpAsk, errors.New("shown in transcript")))
	assert.Equal(t, "Nothing to export yet", describeError(OpExport, export.ErrEmptyConversation))
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]string{"status": "healthy", "model_api": "connected"})
	})
	mux.HandleFunc("GET /conversations/{user}", func(w http.ResponseWriter, r *http.Request) {
		write(w, []map[string]any{
			{"id": "c1", "title": "Disk usage", "created_at": "2025-03-02T09:00:00", "updated_at": "2025-03-04T09:00:00", "message_count": 2},
		})
	})
	mux.HandleFunc("GET /conversations/{id}/details/{user}", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]any{"id": "c1", "title": "Disk usage", "messages": []map[string]string{
			{"id": "m1", "sender": "user", "content": "how much disk is free?", "timestamp": "2025-03-04T08:59:00"},
			{"id": "m2", "sender": "bot", "content": "Run `df -h`.", "timestamp": "2025-03-04T09:00:00"},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestModel(t *testing.T) (Model, *session.Store) {
	t.Helper()
	ctx := context.Background()
	srv := newBackend(t)

	kv, err := storage.Open(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	store, err := session.New(ctx, kv, session.Options{DefaultAPIURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, store.SetIdentity(ctx, model.Identity{ID: "u1", Username: "alice"}))

	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: srv.URL})
	monitor := connectivity.NewMonitor(client, connectivity.Options{
		Sleep: func(context.Context, time.Duration) error { return nil },
	})
	ctrl := controller.New(client, store, monitor, controller.Options{StartupTimeout: time.Second})
	t.Cleanup(ctrl.Close)

	opts := DefaultOptions()
	opts.RenderMarkdown = false
	m := New(ctrl, store, styles.NewTheme(true), opts)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), store
}

// step feeds msg to the model and returns the result.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// started runs the initial load synchronously.
func started(t *testing.T) (Model, *session.Store) {
	t.Helper()
	m, store := newTestModel(t)
	m, _ = step(t, m, m.StartCmd()())
	return m, store
}

func TestModel_StartRendersConversation(t *testing.T) {
	m, _ := started(t)

	view := m.View()
	assert.Contains(t, view, "Disk usage")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "online")
	assert.Contains(t, view, "how much disk is free?")
	assert.Contains(t, view, "Conversations")
}

func TestModel_ToggleSidebar(t *testing.T) {
	m, _ := started(t)
	require.True(t, m.sidebarVisible())
	wide := m.viewport.Width

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlB})
	assert.False(t, m.sidebarVisible())
	assert.Greater(t, m.viewport.Width, wide)
	assert.NotContains(t, m.View(), "Conversations")
}

func TestModel_NarrowTerminalHidesSidebar(t *testing.T) {
	m, _ := started(t)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 50, Height: 30})
	assert.False(t, m.sidebarVisible())
}

func TestModel_UnknownCommand(t *testing.T) {
	m, _ := started(t)
	m.input.SetValue("/frobnicate")
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	status, isErr := m.Status()
	assert.True(t, isErr)
	assert.Contains(t, status, "Unknown command /frobnicate")
	assert.Empty(t, m.input.Value())
}

func TestModel_RenameRequiresTitle(t *testing.T) {
	m, _ := started(t)
	m.input.SetValue("/rename")
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	status, isErr := m.Status()
	assert.True(t, isErr)
	assert.Equal(t, "Usage: /rename <title>", status)
}

func TestModel_ExportWritesFile(t *testing.T) {
	m, _ := started(t)
	dir := t.TempDir()
	m.opts.ExportDir = dir

	m.input.SetValue("/export json")
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())

	status, isErr := m.Status()
	assert.False(t, isErr)
	assert.Contains(t, status, "Exported to")

	files, err := filepath.Glob(filepath.Join(dir, "conversation_Disk_usage_*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestModel_ExportRejectsUnknownFormat(t *testing.T) {
	m, _ := started(t)
	m.input.SetValue("/export pdf")
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	status, isErr := m.Status()
	assert.True(t, isErr)
	assert.Equal(t, "Usage: /export [md|json]", status)
}

func TestModel_DeleteAsksForConfirmation(t *testing.T) {
	m, _ := started(t)
	m.input.SetValue("/delete")
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	require.NotNil(t, m.confirm)
	assert.Contains(t, m.View(), "Are you sure you want to delete this conversation?")

	m, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.Nil(t, cmd)
	assert.Nil(t, m.confirm)
	status, _ := m.Status()
	assert.Equal(t, "Cancelled", status)
}

func TestModel_HelpOverlay(t *testing.T) {
	m, _ := started(t)
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyF1})
	view := m.View()
	assert.Contains(t, view, "Keyboard shortcuts")
	assert.Contains(t, view, "/rename <title>")

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.showHelp)
}

func TestModel_ToggleDarkPersists(t *testing.T) {
	m, store := started(t)
	before := store.DarkMode()

	m.input.SetValue("/dark")
	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg := cmd()
	changed, ok := msg.(ThemeChangedMsg)
	require.True(t, ok)
	assert.Equal(t, !before, changed.Dark)
	assert.Equal(t, !before, store.DarkMode())
}

func TestModel_RetryWithNothingToRetry(t *testing.T) {
	m, _ := started(t)
	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)

	done, ok := cmd().(OpDoneMsg)
	require.True(t, ok)
	assert.Equal(t, "Nothing to retry", done.Info)
}

func TestModel_QuitKey(t *testing.T) {
	m, _ := started(t)
	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestModel_ConnectivityStatus(t *testing.T) {
	m, _ := started(t)
	m, _ = step(t, m, ControllerEventMsg{Event: controller.Event{Kind: controller.EventConnectivityChanged}})
	status, isErr := m.Status()
	assert.False(t, isErr)
	assert.True(t, strings.HasPrefix(status, "Connected"))
}
