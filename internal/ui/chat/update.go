// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/connectivity"
	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/conversations"
	"github.com/jeranaias/linuxassist/internal/export"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/transcript"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case ControllerEventMsg:
		return m.handleEvent(msg.Event)

	case OpDoneMsg:
		return m.handleOpDone(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleEvent(ev controller.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case controller.EventTranscriptChanged, controller.EventRegistryChanged:
		m.updateViewport()
	case controller.EventConnectivityChanged:
		if m.ctrl.Connected() {
			m = m.setStatus("Connected to the server", false)
		} else {
			m = m.setStatus("Disconnected from the server. Press ctrl+o to reconnect.", true)
		}
	}
	return m, nil
}

// =============================================================================
// KEYBOARD
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		switch {
		case key.Matches(msg, m.keyMap.Confirm):
			onYes := m.confirm.onYes
			m.confirm = nil
			return m, onYes
		case key.Matches(msg, m.keyMap.Deny):
			m.confirm = nil
			return m.setStatus("Cancelled", false), nil
		}
		return m, nil
	}

	if m.showHelp && msg.String() == "esc" {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keyMap.NewConversation):
		return m, m.newConversation()

	case key.Matches(msg, m.keyMap.PrevConv):
		return m.moveSelection(-1)

	case key.Matches(msg, m.keyMap.NextConv):
		return m.moveSelection(1)

	case key.Matches(msg, m.keyMap.Retry):
		return m, m.retryLast()

	case key.Matches(msg, m.keyMap.Reconnect):
		return m.setStatus("Reconnecting...", false), m.reconnect()

	case key.Matches(msg, m.keyMap.ToggleDark):
		return m, m.toggleDark()

	case key.Matches(msg, m.keyMap.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		m.layout()
		return m, nil

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if cmd, ok := ParseCommand(text); ok {
		m.input.Reset()
		return m.runCommand(cmd)
	}
	if m.ctrl.State() == controller.StateSubmitting {
		return m.setStatus("Still waiting for the previous answer", true), nil
	}
	m.input.Reset()
	return m, m.submit(text)
}

// moveSelection opens the conversation above or below the selected one in
// sidebar order.
func (m Model) moveSelection(delta int) (tea.Model, tea.Cmd) {
	items := m.ctrl.Registry().Sorted()
	if len(items) == 0 {
		return m, nil
	}
	idx := model.IndexOf(items, m.ctrl.SelectedID())
	switch {
	case idx < 0 && delta > 0:
		idx = 0
	case idx < 0:
		idx = len(items) - 1
	default:
		idx += delta
	}
	if idx < 0 || idx >= len(items) {
		return m, nil
	}
	return m, m.selectConversation(items[idx].ID)
}

// =============================================================================
// OPERATION RESULTS
// =============================================================================

func (m Model) handleOpDone(msg OpDoneMsg) (tea.Model, tea.Cmd) {
	m.updateViewport()
	if msg.Err == nil {
		if msg.Info != "" {
			m = m.setStatus(msg.Info, false)
		}
		return m, nil
	}
	if text := describeError(msg.Op, msg.Err); text != "" {
		m = m.setStatus(text, true)
	}
	return m, nil
}

// describeError returns the status line for a failed operation, or "" when
// the transcript already shows the failure or the app handles it.
func describeError(op Op, err error) string {
	switch {
	case errors.Is(err, controller.ErrUnauthenticated), errors.Is(err, controller.ErrSessionExpired):
		return ""
	case errors.Is(err, controller.ErrEmptyQuestion):
		return ""
	case errors.Is(err, controller.ErrBusy):
		return "Still waiting for the previous answer"
	case errors.Is(err, transcript.ErrSuperseded), errors.Is(err, conversations.ErrStale):
		return ""
	case errors.Is(err, conversations.ErrNotConnected):
		return "Not connected to the server. Press ctrl+o to reconnect."
	case errors.Is(err, conversations.ErrEmptyTitle):
		return "Conversation title cannot be empty"
	case errors.Is(err, connectivity.ErrRetryThrottled):
		return "Please wait a moment before reconnecting"
	case errors.Is(err, model.ErrIdentityRequired):
		return "Please sign in first"
	case errors.Is(err, export.ErrEmptyConversation):
		return "Nothing to export yet"
	}

	switch op {
	case OpAsk, OpStart, OpSelect, OpNew:
		// The transcript carries the error entry, except for create.
		if op == OpNew {
			return "Failed to create conversation: " + api.DetailOf(err)
		}
		return ""
	case OpRetry:
		return "Retry failed: " + api.DetailOf(err)
	case OpRename:
		return "Failed to rename conversation: " + api.DetailOf(err)
	case OpDelete:
		return "Failed to delete conversation: " + api.DetailOf(err)
	case OpClear:
		return "Failed to clear conversations: " + api.DetailOf(err)
	case OpChangeURL:
		if errors.Is(err, connectivity.ErrServerUnreachable) {
			return ""
		}
		return "Invalid URL: " + err.Error()
	case OpReconnect:
		return "Still cannot reach the server"
	case OpExport:
		return "Export failed: " + err.Error()
	default:
		return err.Error()
	}
}
