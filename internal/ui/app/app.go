// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app provides the root Bubble Tea model of the linuxassist TUI. It
// switches between the login form and the chat view and owns the
// subscription to controller events.
package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/linuxassist/internal/auth"
	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/ui/chat"
	"github.com/jeranaias/linuxassist/internal/ui/login"
	"github.com/jeranaias/linuxassist/internal/ui/styles"
)

// State is the visible screen.
type State int

const (
	StateLogin State = iota
	StateChat
)

func (s State) String() string {
	if s == StateChat {
		return "chat"
	}
	return "login"
}

// Store is the persisted session state used by both screens.
// *session.Store implements it.
type Store interface {
	auth.IdentityStore
	chat.Preferences
}

// Model is the root model.
type Model struct {
	ctrl   *controller.Controller
	store  Store
	events <-chan controller.Event
	stop   func()

	state State
	dark  bool

	login login.Model
	chat  chat.Model
}

// New builds the root model. The caller must call Close once the program
// has exited.
func New(ctrl *controller.Controller, authn auth.Authenticator, store Store, opts chat.Options) *Model {
	dark := store.DarkMode()
	theme := styles.NewTheme(dark)
	events, stop := ctrl.Subscribe()

	m := &Model{
		ctrl:   ctrl,
		store:  store,
		events: events,
		stop:   stop,
		dark:   dark,
		login:  login.New(authn, store, theme),
		chat:   chat.New(ctrl, store, theme, opts),
	}
	if _, ok := ctrl.Identity(); ok {
		m.state = StateChat
	}
	return m
}

// Close drops the controller subscription.
func (m *Model) Close() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
}

// State returns the visible screen.
func (m *Model) State() State { return m.state }

// Init starts the event pump and the first screen.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{chat.WaitForEvent(m.events)}
	if m.state == StateChat {
		cmds = append(cmds, m.chat.Init(), m.chat.StartCmd())
	} else {
		cmds = append(cmds, m.login.Init())
	}
	return tea.Batch(cmds...)
}

// Update routes messages to the visible screen. Window sizes and controller
// events reach both so the hidden one stays current.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		var loginCmd, chatCmd tea.Cmd
		m.login, loginCmd = m.login.Update(msg)
		chatCmd = m.updateChat(msg)
		return m, tea.Batch(loginCmd, chatCmd)

	case chat.ControllerEventMsg:
		return m, tea.Batch(chat.WaitForEvent(m.events), m.handleEvent(msg))

	case chat.EventsClosedMsg:
		return m, nil

	case chat.ThemeChangedMsg:
		m.applyTheme(msg.Dark)
		return m, nil

	case login.AuthResultMsg:
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		if msg.Err != nil {
			return m, cmd
		}
		m.state = StateChat
		return m, tea.Batch(cmd, m.chat.Init(), m.chat.StartCmd())
	}

	if m.state == StateLogin {
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		return m, cmd
	}
	return m, m.updateChat(msg)
}

func (m *Model) updateChat(msg tea.Msg) tea.Cmd {
	updated, cmd := m.chat.Update(msg)
	m.chat = updated.(chat.Model)
	return cmd
}

func (m *Model) handleEvent(msg chat.ControllerEventMsg) tea.Cmd {
	switch msg.Event.Kind {
	case controller.EventAuthRequired:
		m.state = StateLogin
		m.login.Reset()
		return m.updateChat(msg)

	case controller.EventSessionChanged:
		if dark := m.store.DarkMode(); dark != m.dark {
			m.applyTheme(dark)
		}
		// Signed in from another terminal.
		if _, ok := m.ctrl.Identity(); ok && m.state == StateLogin {
			m.state = StateChat
			return tea.Batch(m.updateChat(msg), m.chat.StartCmd())
		}
	}
	return m.updateChat(msg)
}

func (m *Model) applyTheme(dark bool) {
	m.dark = dark
	theme := styles.NewTheme(dark)
	m.login.SetTheme(theme)
	m.chat.SetTheme(theme)
}

// View renders the visible screen.
func (m *Model) View() string {
	if m.state == StateLogin {
		return m.login.View()
	}
	return m.chat.View()
}
