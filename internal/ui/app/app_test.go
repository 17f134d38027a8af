// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/connectivity"
	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/session"
	"github.com/jeranaias/linuxassist/internal/storage"
	"github.com/jeranaias/linuxassist/internal/ui/chat"
	"github.com/jeranaias/linuxassist/internal/ui/login"
)

type fixture struct {
	app   *Model
	store *session.Store
	ctrl  *controller.Controller
}

func newFixture(t *testing.T, signedIn bool) *fixture {
	t.Helper()
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /conversations/{user}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	kv, err := storage.Open(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	store, err := session.New(ctx, kv, session.Options{DefaultAPIURL: srv.URL})
	require.NoError(t, err)
	if signedIn {
		require.NoError(t, store.SetIdentity(ctx, model.Identity{ID: "u1", Username: "alice"}))
	}

	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: srv.URL})
	monitor := connectivity.NewMonitor(client, connectivity.Options{
		Sleep: func(context.Context, time.Duration) error { return nil },
	})
	ctrl := controller.New(client, store, monitor, controller.Options{})
	t.Cleanup(ctrl.Close)

	opts := chat.DefaultOptions()
	opts.RenderMarkdown = false
	m := New(ctrl, client, store, opts)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	return &fixture{app: m, store: store, ctrl: ctrl}
}

func TestNew_StartsOnLoginWithoutIdentity(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, StateLogin, f.app.State())
	assert.Contains(t, f.app.View(), "Sign in")
}

func TestNew_StartsOnChatWhenSignedIn(t *testing.T) {
	f := newFixture(t, true)
	assert.Equal(t, StateChat, f.app.State())
	assert.NotNil(t, f.app.Init())
}

func TestAuthResult_SwitchesToChat(t *testing.T) {
	f := newFixture(t, false)

	_, cmd := f.app.Update(login.AuthResultMsg{Identity: model.Identity{ID: "u1", Username: "alice"}})
	assert.Equal(t, StateChat, f.app.State())
	assert.NotNil(t, cmd)
}

func TestAuthResult_ErrorStaysOnLogin(t *testing.T) {
	f := newFixture(t, false)

	f.app.Update(login.AuthResultMsg{Err: &api.ClientError{Status: 401, Detail: "Invalid credentials"}})
	assert.Equal(t, StateLogin, f.app.State())
	assert.Contains(t, f.app.View(), "Invalid credentials")
}

func TestAuthRequired_ReturnsToLogin(t *testing.T) {
	f := newFixture(t, true)

	_, cmd := f.app.Update(chat.ControllerEventMsg{Event: controller.Event{Kind: controller.EventAuthRequired}})
	assert.Equal(t, StateLogin, f.app.State())
	assert.NotNil(t, cmd, "event pump must be re-armed")
}

func TestThemeChanged_RebuildsTheme(t *testing.T) {
	f := newFixture(t, true)
	before := f.app.dark

	f.app.Update(chat.ThemeChangedMsg{Dark: !before})
	assert.Equal(t, !before, f.app.dark)
}

func TestCtrlCQuitsFromLogin(t *testing.T) {
	f := newFixture(t, false)
	_, cmd := f.app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}
