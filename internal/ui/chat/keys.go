// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/charmbracelet/bubbles/key"

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings of the chat view.
type KeyMap struct {
	Submit          key.Binding
	NewConversation key.Binding
	PrevConv        key.Binding
	NextConv        key.Binding
	Retry           key.Binding
	Reconnect       key.Binding
	ToggleDark      key.Binding
	ToggleSidebar   key.Binding
	PageUp          key.Binding
	PageDown        key.Binding
	Help            key.Binding
	Quit            key.Binding
	Confirm         key.Binding
	Deny            key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		NewConversation: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		PrevConv: key.NewBinding(
			key.WithKeys("ctrl+up", "alt+k"),
			key.WithHelp("C-up/M-k", "previous chat"),
		),
		NextConv: key.NewBinding(
			key.WithKeys("ctrl+down", "alt+j"),
			key.WithHelp("C-down/M-j", "next chat"),
		),
		Retry: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "retry"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "reconnect"),
		),
		ToggleDark: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "dark mode"),
		),
		ToggleSidebar: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "sidebar"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		Deny: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n/Esc", "cancel"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NewConversation, k.Retry, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Retry, k.NewConversation},
		{k.PrevConv, k.NextConv, k.ToggleSidebar},
		{k.PageUp, k.PageDown},
		{k.Reconnect, k.ToggleDark, k.Help, k.Quit},
	}
}
