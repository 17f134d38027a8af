// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/export"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/util"
)

func newConversationsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c"},
		Short:   "List and manage conversations",
	}
	cmd.AddCommand(
		newConvListCmd(opts),
		newConvNewCmd(opts),
		newConvRenameCmd(opts),
		newConvDeleteCmd(opts),
		newConvClearCmd(opts),
		newConvExportCmd(opts),
	)
	return cmd
}

// startSession boots a runtime with a controller and runs the initial load.
func startSession(cmd *cobra.Command, opts *rootOptions) (*runtime, error) {
	rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{controller: true})
	if err != nil {
		return nil, err
	}
	if err := rt.ctrl.Start(cmd.Context()); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// resolveConversation accepts a 1-based position in the sorted list or an
// id.
func resolveConversation(items []model.ConversationSummary, ref string) (model.ConversationSummary, error) {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(items) {
		return items[n-1], nil
	}
	for _, conv := range items {
		if conv.ID == ref {
			return conv, nil
		}
	}
	return model.ConversationSummary{}, fmt.Errorf("no conversation %q; run `linuxassist conversations list`", ref)
}

// printConversationsTo writes the numbered list used by list and the REPL.
func printConversationsTo(w io.Writer, items []model.ConversationSummary, selected string) {
	if len(items) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations yet."))
		return
	}
	width := GetTerminalWidth() - 30
	for i, conv := range items {
		marker := " "
		if conv.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %3d  %s  %s\n",
			marker, i+1,
			util.PadWidth(conv.Title, width),
			DimStyle.Render(fmt.Sprintf("%d msgs  %s", conv.MessageCount, conv.UpdatedAt.Local().Format("2006-01-02 15:04"))),
		)
	}
}

func newConvListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := startSession(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			printConversationsTo(out(cmd), rt.ctrl.Registry().Sorted(), rt.ctrl.SelectedID())
			return nil
		},
	}
}

func newConvNewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create an empty conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := startSession(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			conv, err := rt.ctrl.NewConversation(cmd.Context())
			if err != nil {
				return err
			}
			printSuccess(out(cmd), "Created %q (%s)", conv.Title, conv.ID)
			return nil
		},
	}
}

func newConvRenameCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename REF TITLE...",
		Short: "Rename a conversation (REF is a list number or id)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := startSession(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			conv, err := resolveConversation(rt.ctrl.Registry().Sorted(), args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			if err := rt.ctrl.RenameConversation(cmd.Context(), conv.ID, title); err != nil {
				return err
			}
			printSuccess(out(cmd), "Renamed to %q", strings.TrimSpace(title))
			return nil
		},
	}
}

func newConvDeleteCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete REF",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation (REF is a list number or id)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := startSession(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			conv, err := resolveConversation(rt.ctrl.Registry().Sorted(), args[0])
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd, fmt.Sprintf("Delete %q?", conv.Title)) {
				fmt.Fprintln(out(cmd), "Cancelled.")
				return nil
			}
			if err := rt.ctrl.DeleteConversation(cmd.Context(), conv.ID); err != nil {
				return err
			}
			printSuccess(out(cmd), "Conversation deleted")
			return nil
		},
	}
	addYesFlag(cmd.Flags(), &yes)
	return cmd
}

func newConvClearCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := startSession(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !yes && !confirm(cmd, "Delete all conversations? This cannot be undone.") {
				fmt.Fprintln(out(cmd), "Cancelled.")
				return nil
			}
			result, err := rt.ctrl.ClearConversations(cmd.Context())
			if err != nil {
				return err
			}
			printSuccess(out(cmd), "Deleted %d conversations and %d messages",
				result.ConversationsDeleted, result.MessagesDeleted)
			return nil
		},
	}
	addYesFlag(cmd.Flags(), &yes)
	return cmd
}

func newConvExportCmd(opts *rootOptions) *cobra.Command {
	var (
		format     string
		outputDir  string
		withErrors bool
		open       bool
	)
	cmd := &cobra.Command{
		Use:   "export REF",
		Short: "Write a conversation to a Markdown or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportOpts := export.DefaultOptions()
			exportOpts.OutputDir = outputDir
			exportOpts.IncludeErrors = withErrors
			exportOpts.OpenAfterExport = open
			exporter, err := export.ForFormat(format, exportOpts)
			if err != nil {
				return err
			}

			rt, err := startSession(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			conv, err := resolveConversation(rt.ctrl.Registry().Sorted(), args[0])
			if err != nil {
				return err
			}
			if err := rt.ctrl.SelectConversation(cmd.Context(), conv.ID); err != nil {
				return err
			}
			path, err := exportCurrent(rt.ctrl, exporter, exportOpts)
			if err != nil {
				return err
			}
			printSuccess(out(cmd), "Exported to %s", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format: md or json")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to write into")
	cmd.Flags().BoolVar(&withErrors, "include-errors", false, "keep failed requests in the export")
	cmd.Flags().BoolVar(&open, "open", false, "open the file after writing it")
	return cmd
}

// exportCurrent writes the selected conversation's transcript.
func exportCurrent(ctrl *controller.Controller, exporter export.Exporter, opts *export.Options) (string, error) {
	summary, _ := ctrl.Registry().Get(ctrl.SelectedID())
	conv := export.Conversation{Summary: summary, Messages: ctrl.Transcript().Messages()}
	return export.ExportToFile(conv, exporter, opts)
}

func addYesFlag(fs *pflag.FlagSet, yes *bool) {
	fs.BoolVarP(yes, "yes", "y", false, "do not ask for confirmation")
}

// confirm asks on the command's streams. A read error counts as no.
func confirm(cmd *cobra.Command, question string) bool {
	ok, err := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).Confirm(question)
	return err == nil && ok
}

