// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/linuxassist/internal/controller"
)

// Op names a background operation started by the chat view.
type Op int

const (
	OpAsk Op = iota
	OpRetry
	OpStart
	OpSelect
	OpNew
	OpRename
	OpDelete
	OpClear
	OpChangeURL
	OpReconnect
	OpToggleDark
	OpLogout
	OpExport
)

func (o Op) String() string {
	switch o {
	case OpAsk:
		return "ask"
	case OpRetry:
		return "retry"
	case OpStart:
		return "start"
	case OpSelect:
		return "select"
	case OpNew:
		return "new"
	case OpRename:
		return "rename"
	case OpDelete:
		return "delete"
	case OpClear:
		return "clear"
	case OpChangeURL:
		return "url"
	case OpReconnect:
		return "reconnect"
	case OpToggleDark:
		return "dark"
	case OpLogout:
		return "logout"
	case OpExport:
		return "export"
	default:
		return "unknown"
	}
}

// OpDoneMsg reports the end of an operation. Info is an optional status
// line for the success case.
type OpDoneMsg struct {
	Op   Op
	Info string
	Err  error
}

// ControllerEventMsg wraps a controller notification.
type ControllerEventMsg struct {
	Event controller.Event
}

// EventsClosedMsg is sent when the controller's event stream ends.
type EventsClosedMsg struct{}

// ThemeChangedMsg asks every view to rebuild its styles.
type ThemeChangedMsg struct {
	Dark bool
}

// WaitForEvent blocks until the next controller event.
func WaitForEvent(events <-chan controller.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return ControllerEventMsg{Event: ev}
	}
}
