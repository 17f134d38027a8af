// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/linuxassist/internal/config"
	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/export"
	"github.com/jeranaias/linuxassist/internal/ui/chat"
)

const historyFile = "chat_history"

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive line-based chat",
		Long:  "Chat with the assistant in a plain terminal. Type /help for commands.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}
}

// =============================================================================
// REPL
// =============================================================================

// repl executes chat input against the controller and prints transcript
// entries it has not shown yet.
type repl struct {
	ctrl   *controller.Controller
	out    io.Writer
	render *answerRenderer
	shown  map[string]bool
}

func newREPL(ctrl *controller.Controller, w io.Writer, render *answerRenderer) *repl {
	return &repl{ctrl: ctrl, out: w, render: render, shown: make(map[string]bool)}
}

// flush prints unseen transcript entries in order.
func (r *repl) flush() {
	for _, msg := range r.ctrl.Transcript().Messages() {
		if r.shown[msg.ID] {
			continue
		}
		r.shown[msg.ID] = true
		printMessage(r.out, r.render, msg)
	}
}

// reprint shows the whole transcript again after it was replaced.
func (r *repl) reprint() {
	r.shown = make(map[string]bool)
	fmt.Fprintln(r.out, TitleStyle.Render(r.ctrl.Title()))
	r.flush()
}

// handle runs one input line. quit is true when the user asked to leave.
func (r *repl) handle(ctx context.Context, line string) (quit bool, err error) {
	cmd, isCommand := chat.ParseCommand(line)
	if !isCommand {
		before := len(r.ctrl.Transcript().Messages())
		err := r.ctrl.SubmitQuestion(ctx, line)
		if errors.Is(err, controller.ErrEmptyQuestion) {
			return false, nil
		}
		// Skip the echo of the question; the user just typed it.
		msgs := r.ctrl.Transcript().Messages()
		if before < len(msgs) {
			r.shown[msgs[before].ID] = true
		}
		r.flush()
		if errors.Is(err, controller.ErrSessionExpired) {
			return true, err
		}
		return false, nil
	}

	switch cmd.Name {
	case "quit", "exit", "q":
		return true, nil

	case "help":
		fmt.Fprintln(r.out, "Commands:")
		for _, c := range replCommands {
			fmt.Fprintf(r.out, "  %-16s %s\n", c[0], DimStyle.Render(c[1]))
		}
		return false, nil

	case "list":
		printConversationsTo(r.out, r.ctrl.Registry().Sorted(), r.ctrl.SelectedID())
		return false, nil

	case "open":
		conv, err := resolveConversation(r.ctrl.Registry().Sorted(), cmd.Arg)
		if err != nil {
			return false, err
		}
		if err := r.ctrl.SelectConversation(ctx, conv.ID); err != nil {
			r.flush()
			return false, err
		}
		r.reprint()
		return false, nil

	case "new":
		if _, err := r.ctrl.NewConversation(ctx); err != nil {
			return false, err
		}
		r.reprint()
		return false, nil

	case "rename":
		id := r.ctrl.SelectedID()
		if id == "" {
			return false, errors.New("no conversation selected")
		}
		if err := r.ctrl.RenameConversation(ctx, id, cmd.Arg); err != nil {
			return false, err
		}
		printSuccess(r.out, "Renamed to %q", r.ctrl.Title())
		return false, nil

	case "delete":
		id := r.ctrl.SelectedID()
		if id == "" {
			return false, errors.New("no conversation selected")
		}
		if err := r.ctrl.DeleteConversation(ctx, id); err != nil {
			return false, err
		}
		printSuccess(r.out, "Conversation deleted")
		r.reprint()
		return false, nil

	case "retry":
		question, ok := lastRetryableQuestion(r.ctrl)
		if !ok {
			fmt.Fprintln(r.out, "Nothing to retry.")
			return false, nil
		}
		err := r.ctrl.HandleRetryMessage(ctx, question)
		r.flush()
		return false, err

	case "export":
		if r.ctrl.SelectedID() == "" {
			return false, errors.New("no conversation selected")
		}
		exporter, err := export.ForFormat(cmd.Arg, nil)
		if err != nil {
			return false, err
		}
		path, err := exportCurrent(r.ctrl, exporter, nil)
		if err != nil {
			return false, err
		}
		printSuccess(r.out, "Exported to %s", path)
		return false, nil

	case "url":
		err := r.ctrl.ChangeAPIURL(ctx, cmd.Arg)
		r.flush()
		return false, err

	default:
		return false, fmt.Errorf("unknown command /%s, type /help", cmd.Name)
	}
}

var replCommands = [][2]string{
	{"/list", "list conversations"},
	{"/open N", "open conversation N from /list"},
	{"/new", "start a new conversation"},
	{"/rename TITLE", "rename the current conversation"},
	{"/delete", "delete the current conversation"},
	{"/retry", "resend the last failed question"},
	{"/export [md|json]", "save the conversation to a file"},
	{"/url URL", "switch backend"},
	{"/quit", "leave"},
}

func lastRetryableQuestion(ctrl *controller.Controller) (string, bool) {
	msgs := ctrl.Transcript().Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsRetryable() {
			return msgs[i].OriginalQuestion, true
		}
	}
	return "", false
}

// =============================================================================
// LINER LOOP
// =============================================================================

func runChat(cmd *cobra.Command, opts *rootOptions) error {
	rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{controller: true, background: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	w := out(cmd)
	r := newREPL(rt.ctrl, w, newAnswerRenderer(rt.cfg.UI.RenderMarkdown, rt.store.DarkMode()))

	if err := rt.ctrl.Start(ctx); err != nil {
		r.flush()
		if !errors.Is(err, controller.ErrUnauthenticated) && !errors.Is(err, controller.ErrSessionExpired) {
			printWarn(cmd.ErrOrStderr(), "%s", errorText(err))
		} else {
			return err
		}
	} else {
		r.reprint()
	}
	fmt.Fprintln(w, DimStyle.Render("Type a question, or /help for commands. Ctrl+D leaves."))

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := ""
	if dir, err := config.ConfigDir(); err == nil {
		histPath = filepath.Join(dir, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.OpenFile(histPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		} else {
			rt.logger.Warn("could not save chat history", zap.Error(err))
		}
	}()

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(w)
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		quit, err := r.handle(ctx, input)
		if quit {
			return err
		}
		if err != nil {
			printFail(cmd.ErrOrStderr(), "%s", errorText(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
