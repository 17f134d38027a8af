// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/linuxassist/internal/ui/app"
	"github.com/jeranaias/linuxassist/internal/ui/chat"
)

// runTUI starts the full-screen interface.
func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	if !IsTTY() || !IsStdoutTTY() {
		return fmt.Errorf("the full-screen interface needs a terminal; use `linuxassist chat` or `linuxassist ask`")
	}

	rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{controller: true, background: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	ui := rt.cfg.UI
	root := app.New(rt.ctrl, rt.client, rt.store, chat.Options{
		ShowSidebar:    ui.ShowSidebar,
		RenderMarkdown: ui.RenderMarkdown,
		WordWrap:       ui.WordWrap,
		SidebarWidth:   ui.SidebarWidth,
	})
	defer root.Close()

	p := tea.NewProgram(
		root,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)
	if _, err := p.Run(); err != nil && cmd.Context().Err() == nil {
		return fmt.Errorf("error running linuxassist: %w", err)
	}
	return nil
}
