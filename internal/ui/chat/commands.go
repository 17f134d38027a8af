// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/linuxassist/internal/export"
	"github.com/jeranaias/linuxassist/internal/model"
)

// opTimeout bounds every background operation. Individual requests carry
// their own shorter timeouts.
const opTimeout = 2 * time.Minute

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// Command is a parsed slash command.
type Command struct {
	Name string
	Arg  string
}

// CommandHelp lists the slash commands in display order.
var CommandHelp = []struct {
	Usage string
	Desc  string
}{
	{"/new", "start a new conversation"},
	{"/rename <title>", "rename the selected conversation"},
	{"/delete", "delete the selected conversation"},
	{"/clear", "delete all conversations"},
	{"/url <url>", "change the backend URL"},
	{"/retry", "resend the last failed question"},
	{"/export [md|json]", "save the conversation to a file"},
	{"/dark", "toggle dark mode"},
	{"/logout", "sign out"},
	{"/help", "show this list"},
}

// ParseCommand splits "/name args". ok is false for ordinary input.
func ParseCommand(input string) (Command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") || len(input) == 1 {
		return Command{}, false
	}
	name, arg, _ := strings.Cut(input[1:], " ")
	return Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}, true
}

// runCommand turns a slash command into an operation or a local change.
func (m Model) runCommand(cmd Command) (Model, tea.Cmd) {
	switch cmd.Name {
	case "new":
		return m, m.newConversation()

	case "rename":
		id := m.ctrl.SelectedID()
		if id == "" {
			return m.setStatus("No conversation selected", true), nil
		}
		if cmd.Arg == "" {
			return m.setStatus("Usage: /rename <title>", true), nil
		}
		return m, m.run(OpRename, func(ctx context.Context) (string, error) {
			return "Conversation renamed", m.ctrl.RenameConversation(ctx, id, cmd.Arg)
		})

	case "delete":
		id := m.ctrl.SelectedID()
		if id == "" {
			return m.setStatus("No conversation selected", true), nil
		}
		return m.askConfirm("Are you sure you want to delete this conversation?", m.deleteConversation(id)), nil

	case "clear":
		if m.ctrl.Registry().Len() == 0 {
			return m.setStatus("There are no conversations to clear", false), nil
		}
		return m.askConfirm("Are you sure you want to delete all conversations? This cannot be undone.", m.clearConversations()), nil

	case "url":
		if cmd.Arg == "" {
			return m.setStatus("Usage: /url <http://host:port>", true), nil
		}
		return m, m.run(OpChangeURL, func(ctx context.Context) (string, error) {
			return "Connected to " + cmd.Arg, m.ctrl.ChangeAPIURL(ctx, cmd.Arg)
		})

	case "retry":
		return m, m.retryLast()

	case "export":
		if m.ctrl.SelectedID() == "" {
			return m.setStatus("No conversation selected", true), nil
		}
		exportOpts := export.DefaultOptions()
		exportOpts.OutputDir = m.opts.ExportDir
		exporter, err := export.ForFormat(cmd.Arg, exportOpts)
		if err != nil {
			return m.setStatus("Usage: /export [md|json]", true), nil
		}
		return m, m.exportConversation(exporter, exportOpts)

	case "dark":
		return m, m.toggleDark()

	case "logout":
		return m, m.run(OpLogout, func(ctx context.Context) (string, error) {
			return "", m.ctrl.Logout(ctx)
		})

	case "help":
		m.showHelp = !m.showHelp
		return m, nil

	default:
		return m.setStatus(fmt.Sprintf("Unknown command /%s. Type /help for a list.", cmd.Name), true), nil
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// run executes fn off the UI goroutine and reports through OpDoneMsg.
func (m Model) run(op Op, fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		info, err := fn(ctx)
		return OpDoneMsg{Op: op, Info: info, Err: err}
	}
}

// StartCmd runs the initial load of the signed-in user's data.
func (m Model) StartCmd() tea.Cmd {
	return m.run(OpStart, func(ctx context.Context) (string, error) {
		return "", m.ctrl.Start(ctx)
	})
}

func (m Model) submit(text string) tea.Cmd {
	return m.run(OpAsk, func(ctx context.Context) (string, error) {
		return "", m.ctrl.SubmitQuestion(ctx, text)
	})
}

func (m Model) newConversation() tea.Cmd {
	return m.run(OpNew, func(ctx context.Context) (string, error) {
		_, err := m.ctrl.NewConversation(ctx)
		return "", err
	})
}

func (m Model) selectConversation(id string) tea.Cmd {
	return m.run(OpSelect, func(ctx context.Context) (string, error) {
		return "", m.ctrl.SelectConversation(ctx, id)
	})
}

func (m Model) deleteConversation(id string) tea.Cmd {
	return m.run(OpDelete, func(ctx context.Context) (string, error) {
		return "Conversation deleted", m.ctrl.DeleteConversation(ctx, id)
	})
}

func (m Model) clearConversations() tea.Cmd {
	return m.run(OpClear, func(ctx context.Context) (string, error) {
		result, err := m.ctrl.ClearConversations(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted %d conversations", result.ConversationsDeleted), nil
	})
}

func (m Model) exportConversation(exporter export.Exporter, opts *export.Options) tea.Cmd {
	summary, _ := m.ctrl.Registry().Get(m.ctrl.SelectedID())
	conv := export.Conversation{Summary: summary, Messages: m.ctrl.Transcript().Messages()}
	return m.run(OpExport, func(context.Context) (string, error) {
		path, err := export.ExportToFile(conv, exporter, opts)
		if err != nil {
			return "", err
		}
		return "Exported to " + path, nil
	})
}

func (m Model) reconnect() tea.Cmd {
	return m.run(OpReconnect, func(ctx context.Context) (string, error) {
		return "Connected", m.ctrl.Reconnect(ctx)
	})
}

func (m Model) toggleDark() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		dark, err := m.prefs.ToggleDarkMode(ctx)
		if err != nil {
			return OpDoneMsg{Op: OpToggleDark, Err: err}
		}
		return ThemeChangedMsg{Dark: dark}
	}
}

// retryLast resends the newest retryable error entry.
func (m Model) retryLast() tea.Cmd {
	question, ok := lastRetryable(m.ctrl.Transcript().Messages())
	if !ok {
		return func() tea.Msg {
			return OpDoneMsg{Op: OpRetry, Info: "Nothing to retry"}
		}
	}
	return m.run(OpRetry, func(ctx context.Context) (string, error) {
		return "", m.ctrl.HandleRetryMessage(ctx, question)
	})
}

func lastRetryable(msgs []model.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsRetryable() {
			return msgs[i].OriginalQuestion, true
		}
	}
	return "", false
}
