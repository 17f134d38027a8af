// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/ui/styles"
)

// Preferences is the dark mode setting. *session.Store implements it.
type Preferences interface {
	DarkMode() bool
	ToggleDarkMode(ctx context.Context) (bool, error)
}

// Options mirror the [ui] config section.
type Options struct {
	ShowSidebar    bool
	RenderMarkdown bool
	WordWrap       int
	SidebarWidth   int

	// ExportDir is where /export writes files.
	ExportDir string
}

// DefaultOptions returns the options used when the config has none.
func DefaultOptions() Options {
	return Options{ShowSidebar: true, RenderMarkdown: true, WordWrap: 80, SidebarWidth: 28, ExportDir: "."}
}

// confirmation is a pending yes/no question.
type confirmation struct {
	prompt string
	onYes  tea.Cmd
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctrl  *controller.Controller
	prefs Preferences
	theme *styles.Theme
	opts  Options

	// Dimensions
	width  int
	height int

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keyMap   KeyMap

	// Markdown rendering, keyed by message id. Reset on resize or theme
	// change.
	renderer    *glamour.TermRenderer
	renderCache map[string]string

	showSidebar bool
	showHelp    bool
	confirm     *confirmation

	// Status line
	statusMsg   string
	statusError bool
	statusAt    time.Time
}

// New creates the chat view.
func New(ctrl *controller.Controller, prefs Preferences, theme *styles.Theme, opts Options) Model {
	if opts.WordWrap <= 0 {
		opts.WordWrap = 80
	}
	if opts.SidebarWidth <= 0 {
		opts.SidebarWidth = 28
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about a Linux command..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	m := Model{
		ctrl:        ctrl,
		prefs:       prefs,
		theme:       theme,
		opts:        opts,
		viewport:    vp,
		input:       ti,
		spinner:     sp,
		keyMap:      DefaultKeyMap(),
		showSidebar: opts.ShowSidebar,
		renderCache: make(map[string]string),
	}
	m.renderer = m.newRenderer(opts.WordWrap)
	return m
}

// newRenderer builds a glamour renderer for the current theme. A nil
// renderer falls back to plain text.
func (m Model) newRenderer(wrap int) *glamour.TermRenderer {
	if !m.opts.RenderMarkdown {
		return nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

// SetTheme swaps the styles and drops cached renders.
func (m *Model) SetTheme(theme *styles.Theme) {
	theme.SetSize(m.width, m.height)
	m.theme = theme
	m.spinner.Style = theme.Spinner
	m.renderer = m.newRenderer(m.wrapWidth())
	m.renderCache = make(map[string]string)
	m.updateViewport()
}

// Init starts the cursor blink and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Status returns the current status line.
func (m Model) Status() (string, bool) {
	return m.statusMsg, m.statusError
}

func (m Model) setStatus(msg string, isError bool) Model {
	m.statusMsg = msg
	m.statusError = isError
	m.statusAt = time.Now()
	return m
}

func (m Model) askConfirm(prompt string, onYes tea.Cmd) Model {
	m.confirm = &confirmation{prompt: prompt, onYes: onYes}
	return m
}

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight    = 1
	inputAreaHeight = 2 // border + input line
	statusBarHeight = 1
)

// sidebarVisible reports whether the sidebar fits and is enabled.
func (m Model) sidebarVisible() bool {
	return m.showSidebar && m.theme.GetLayoutMode() != styles.LayoutNarrow
}

// sidebarOuterWidth includes the border and padding.
func (m Model) sidebarOuterWidth() int {
	if !m.sidebarVisible() {
		return 0
	}
	return m.opts.SidebarWidth + 2
}

func (m Model) wrapWidth() int {
	w := m.width - m.sidebarOuterWidth() - 4
	if w > m.opts.WordWrap {
		w = m.opts.WordWrap
	}
	if w < 20 {
		w = 20
	}
	return w
}

// layout sizes the viewport and the input after a resize or a sidebar
// toggle.
func (m *Model) layout() {
	vpHeight := m.height - headerHeight - inputAreaHeight - statusBarHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := m.width - m.sidebarOuterWidth()
	if vpWidth < 1 {
		vpWidth = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight

	inputWidth := m.width - 4 - len(m.input.Prompt)
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	m.theme.SetSize(m.width, m.height)
	m.renderer = m.newRenderer(m.wrapWidth())
	m.renderCache = make(map[string]string)
	m.updateViewport()
}

// updateViewport re-renders the transcript and keeps the view pinned to the
// bottom when it already was.
func (m *Model) updateViewport() {
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() <= m.viewport.Height
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
