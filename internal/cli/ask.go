// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/linuxassist/internal/model"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		conversation string
		raw          bool
	)
	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask a single question and print the answer",
		Example: `  linuxassist ask how do I find large files
  linuxassist ask --conversation 2 "and only in /var?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{controller: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if conversation != "" {
				// A list is needed to resolve positions.
				if err := rt.ctrl.Start(ctx); err != nil {
					return err
				}
				conv, err := resolveConversation(rt.ctrl.Registry().Sorted(), conversation)
				if err != nil {
					return err
				}
				if err := rt.ctrl.SelectConversation(ctx, conv.ID); err != nil {
					return err
				}
			}

			question := strings.Join(args, " ")
			if err := rt.ctrl.SubmitQuestion(ctx, question); err != nil {
				return lastError(rt, err)
			}

			msgs := rt.ctrl.Transcript().Messages()
			answer := msgs[len(msgs)-1]
			r := newAnswerRenderer(!raw && rt.cfg.UI.RenderMarkdown, rt.store.DarkMode())
			fmt.Fprint(out(cmd), r.Render(answer.Content))
			return nil
		},
	}
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "continue a conversation (list number or id)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the answer without markdown rendering")
	return cmd
}

// lastError prefers the error entry the controller added to the transcript,
// which carries the user-facing wording.
func lastError(rt *runtime, err error) error {
	msgs := rt.ctrl.Transcript().Messages()
	if n := len(msgs); n > 0 && msgs[n-1].Sender == model.SenderError {
		return errors.New(msgs[n-1].Content)
	}
	return err
}
