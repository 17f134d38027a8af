// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/ui/styles"
	"github.com/jeranaias/linuxassist/internal/util"
)

// View renders the chat view.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			m.renderHelp(),
		)
	}

	body := m.viewport.View()
	if m.sidebarVisible() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderInput(),
		m.renderStatusBar(),
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(m.ctrl.Title())

	var user string
	if identity, ok := m.ctrl.Identity(); ok {
		user = m.theme.HeaderSubtitle.Render(identity.DisplayName())
	}

	var conn string
	if m.ctrl.Connected() {
		conn = m.theme.StatusOnline.Render(styles.StatusIndicators.Online + " online")
	} else {
		conn = m.theme.StatusOffline.Render(styles.StatusIndicators.Offline + " offline")
	}

	right := strings.TrimSpace(user + "  " + conn)
	gap := m.width - 2 - lipgloss.Width(title) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar() string {
	width := m.opts.SidebarWidth
	items := m.ctrl.Registry().Sorted()
	selected := m.ctrl.SelectedID()

	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Conversations"))
	b.WriteString("\n")

	if len(items) == 0 {
		b.WriteString(m.theme.SidebarMeta.Render("No conversations yet"))
	}

	// Each entry takes two lines. Keep the selected one in view.
	rows := (m.viewport.Height - 2) / 2
	if rows < 1 {
		rows = 1
	}
	start := 0
	if idx := model.IndexOf(items, selected); idx >= rows {
		start = idx - rows + 1
	}

	for i := start; i < len(items) && i < start+rows; i++ {
		conv := items[i]
		title := conv.Title
		if title == "" {
			title = model.DefaultTitle
		}
		title = util.TruncateWidth(title, width-2)

		line := "  " + title
		style := m.theme.SidebarItem
		if conv.ID == selected {
			line = "> " + title
			style = m.theme.SidebarItemActive
		}
		b.WriteString(style.Width(width).Render(line))
		b.WriteString("\n")

		meta := fmt.Sprintf("  %d msgs, %s", conv.MessageCount, conv.UpdatedAt.Local().Format("Jan 2 15:04"))
		b.WriteString(m.theme.SidebarMeta.Render(runewidth.Truncate(meta, width, "")))
		b.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(width).
		Height(m.viewport.Height).
		MaxHeight(m.viewport.Height).
		Render(strings.TrimRight(b.String(), "\n"))
}

// =============================================================================
// MESSAGES
// =============================================================================

// renderMessages renders the whole transcript for the viewport.
func (m *Model) renderMessages() string {
	msgs := m.ctrl.Transcript().Messages()
	if len(msgs) == 0 {
		return m.theme.Muted.Render("No messages yet.")
	}

	parts := make([]string, 0, len(msgs)+1)
	for _, msg := range msgs {
		parts = append(parts, m.renderMessage(msg))
	}
	if m.ctrl.State() == controller.StateSubmitting {
		parts = append(parts, m.theme.ThinkingText.Render("Thinking..."))
	}
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderMessage(msg model.Message) string {
	label := m.theme.SenderLabel.Render(msg.Sender.DisplayName())
	stamp := m.theme.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))
	head := label + " " + stamp

	width := m.wrapWidth()
	switch msg.Sender {
	case model.SenderUser:
		return head + "\n" + m.theme.UserBubble.Width(width).Render(msg.Content)

	case model.SenderAI:
		return head + "\n" + m.theme.AssistantBubble.Render(m.renderMarkdown(msg))

	default:
		body := m.theme.ErrorBubble.Width(width).Render(msg.Content)
		if msg.IsRetryable() {
			body += "\n" + m.theme.RetryHint.Render("  ctrl+r to retry")
		}
		return head + "\n" + body
	}
}

// renderMarkdown renders assistant content through glamour, caching by
// message id.
func (m *Model) renderMarkdown(msg model.Message) string {
	if m.renderer == nil {
		return lipgloss.NewStyle().Width(m.wrapWidth()).Render(msg.Content)
	}
	if cached, ok := m.renderCache[msg.ID]; ok {
		return cached
	}
	out, err := m.renderer.Render(msg.Content)
	if err != nil {
		out = msg.Content
	}
	out = strings.Trim(out, "\n")
	m.renderCache[msg.ID] = out
	return out
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderInput() string {
	if m.confirm != nil {
		prompt := m.theme.WarningStyle.Render(m.confirm.prompt)
		keys := m.theme.ShortcutKey.Render(" y") + m.theme.ShortcutDesc.Render(" yes ") +
			m.theme.ShortcutKey.Render("n") + m.theme.ShortcutDesc.Render(" no")
		return m.theme.InputContainer.Width(m.width).Render(prompt + keys)
	}
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.ctrl.IsLoading():
		left = m.spinner.View() + " " + m.theme.ThinkingText.Render("Working...")
	case m.statusMsg != "" && m.statusError:
		left = m.theme.ErrorStyle.Render(m.statusMsg)
	case m.statusMsg != "":
		left = m.theme.SuccessStyle.Render(m.statusMsg)
	}

	right := m.shortcut("ctrl+n", "new") + "  " +
		m.shortcut("ctrl+b", "sidebar") + "  " +
		m.shortcut("f1", "help") + "  " +
		m.shortcut("ctrl+c", "quit")

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		// Narrow terminal: drop the shortcuts.
		return m.theme.StatusBar.Width(m.width).Render(left)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) shortcut(k, desc string) string {
	return m.theme.ShortcutKey.Render(k) + " " + m.theme.ShortcutDesc.Render(desc)
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.FormTitle.Render("Keyboard shortcuts"))
	b.WriteString("\n")
	for _, group := range m.keyMap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "  %s  %s\n",
				m.theme.ShortcutKey.Render(runewidth.FillRight(h.Key, 14)),
				m.theme.ShortcutDesc.Render(h.Desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.theme.FormTitle.Render("Commands"))
	b.WriteString("\n")
	for _, c := range CommandHelp {
		fmt.Fprintf(&b, "  %s  %s\n",
			m.theme.ShortcutKey.Render(runewidth.FillRight(c.Usage, 16)),
			m.theme.ShortcutDesc.Render(c.Desc))
	}
	b.WriteString("\n")
	b.WriteString(m.theme.FormHint.Render("esc or f1 to close"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}
