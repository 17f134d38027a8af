// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package login provides the sign-in and registration form of the
// linuxassist TUI.
package login

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/linuxassist/internal/auth"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/ui/styles"
)

// submitTimeout bounds a login or register round trip.
const submitTimeout = 30 * time.Second

// AuthResultMsg reports the outcome of a submit. Identity is set on success.
type AuthResultMsg struct {
	Identity model.Identity
	Err      error
}

// field indexes into Model.inputs.
type field int

const (
	fieldUsername field = iota
	fieldEmail
	fieldPassword
)

// KeyMap defines the form's key bindings.
type KeyMap struct {
	Next       key.Binding
	Prev       key.Binding
	Submit     key.Binding
	SwitchMode key.Binding
}

// DefaultKeyMap returns the default form bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		SwitchMode: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "switch login/register"),
		),
	}
}

// =============================================================================
// LOGIN MODEL
// =============================================================================

// Model is the Bubble Tea model for the auth form.
type Model struct {
	authn auth.Authenticator
	store auth.IdentityStore
	theme *styles.Theme

	mode    auth.Mode
	inputs  []textinput.Model
	focus   field
	keyMap  KeyMap
	spinner spinner.Model

	err        string
	submitting bool

	width  int
	height int
}

// New creates the form in login mode.
func New(authn auth.Authenticator, store auth.IdentityStore, theme *styles.Theme) Model {
	inputs := make([]textinput.Model, 3)

	inputs[fieldUsername] = textinput.New()
	inputs[fieldUsername].Placeholder = "username"
	inputs[fieldUsername].CharLimit = 64

	inputs[fieldEmail] = textinput.New()
	inputs[fieldEmail].Placeholder = "you@example.com"
	inputs[fieldEmail].CharLimit = 254

	inputs[fieldPassword] = textinput.New()
	inputs[fieldPassword].Placeholder = "password"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '*'
	inputs[fieldPassword].CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	m := Model{
		authn:   authn,
		store:   store,
		theme:   theme,
		mode:    auth.ModeLogin,
		inputs:  inputs,
		keyMap:  DefaultKeyMap(),
		spinner: sp,
	}
	m.setFocus(fieldEmail)
	return m
}

// Mode returns whether the form logs in or registers.
func (m Model) Mode() auth.Mode { return m.mode }

// Error returns the message shown under the form.
func (m Model) Error() string { return m.err }

// SetTheme swaps the styles.
func (m *Model) SetTheme(theme *styles.Theme) {
	m.theme = theme
	m.spinner.Style = theme.Spinner
}

// Reset clears the form, keeping the mode. Used after logout.
func (m *Model) Reset() {
	for i := range m.inputs {
		m.inputs[i].Reset()
	}
	m.err = ""
	m.submitting = false
	m.setFocus(m.fields()[0])
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// fields lists the visible fields in focus order.
func (m Model) fields() []field {
	if m.mode == auth.ModeRegister {
		return []field{fieldUsername, fieldEmail, fieldPassword}
	}
	return []field{fieldEmail, fieldPassword}
}

func (m *Model) setFocus(f field) {
	m.focus = f
	for i := range m.inputs {
		if field(i) == f {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *Model) moveFocus(delta int) {
	order := m.fields()
	idx := 0
	for i, f := range order {
		if f == m.focus {
			idx = i
		}
	}
	idx = (idx + delta + len(order)) % len(order)
	m.setFocus(order[idx])
}

func (m Model) form() auth.Form {
	return auth.Form{
		Mode:     m.mode,
		Username: strings.TrimSpace(m.inputs[fieldUsername].Value()),
		Email:    strings.TrimSpace(m.inputs[fieldEmail].Value()),
		Password: m.inputs[fieldPassword].Value(),
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case AuthResultMsg:
		m.submitting = false
		if msg.Err != nil {
			m.err = auth.Message(msg.Err)
			return m, nil
		}
		m.err = ""
		m.inputs[fieldPassword].Reset()
		return m, nil

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keyMap.Submit):
			return m.submit()
		case key.Matches(msg, m.keyMap.Next):
			m.moveFocus(1)
			return m, nil
		case key.Matches(msg, m.keyMap.Prev):
			m.moveFocus(-1)
			return m, nil
		case key.Matches(msg, m.keyMap.SwitchMode):
			if m.mode == auth.ModeLogin {
				m.mode = auth.ModeRegister
			} else {
				m.mode = auth.ModeLogin
			}
			m.err = ""
			m.setFocus(m.fields()[0])
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// submit validates locally, then calls the backend off the UI goroutine.
func (m Model) submit() (Model, tea.Cmd) {
	form := m.form()
	if err := form.Validate(); err != nil {
		m.err = auth.Message(err)
		return m, nil
	}

	m.err = ""
	m.submitting = true
	authn, store := m.authn, m.store
	do := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		identity, err := auth.Submit(ctx, authn, store, form)
		return AuthResultMsg{Identity: identity, Err: err}
	}
	return m, tea.Batch(do, m.spinner.Tick)
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the form centered in the window.
func (m Model) View() string {
	title := "Sign in"
	switchHint := "No account? ctrl+s to register"
	if m.mode == auth.ModeRegister {
		title = "Create an account"
		switchHint = "Have an account? ctrl+s to sign in"
	}

	var b strings.Builder
	b.WriteString(m.theme.FormTitle.Render("Linux Command Assistant"))
	b.WriteString("\n")
	b.WriteString(m.theme.FormLabel.Render(title))
	b.WriteString("\n\n")

	labels := map[field]string{
		fieldUsername: "Username",
		fieldEmail:    "Email",
		fieldPassword: "Password",
	}
	for _, f := range m.fields() {
		label := m.theme.FormLabel.Render(labels[f])
		if f == m.focus {
			label = m.theme.FormFocus.Render(labels[f])
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(m.inputs[f].View())
		b.WriteString("\n\n")
	}

	if m.submitting {
		b.WriteString(m.spinner.View() + " " + m.theme.ThinkingText.Render("Please wait..."))
	} else {
		button := "Login"
		if m.mode == auth.ModeRegister {
			button = "Register"
		}
		b.WriteString(m.theme.FormButton.Render(button))
	}
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.FormError.Render(m.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.FormHint.Render(switchHint))

	box := m.theme.FormBox.Render(b.String())
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
