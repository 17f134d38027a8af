// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/linuxassist/internal/model"
)

// answerRenderer renders assistant answers as markdown when colors are on.
type answerRenderer struct {
	r *glamour.TermRenderer
}

func newAnswerRenderer(markdown, dark bool) *answerRenderer {
	if !markdown || !ColorsEnabled() {
		return &answerRenderer{}
	}
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(GetTerminalWidth()-4),
	)
	if err != nil {
		return &answerRenderer{}
	}
	return &answerRenderer{r: r}
}

// Render returns text ready to print, ending in a newline.
func (a *answerRenderer) Render(text string) string {
	if a.r != nil {
		if s, err := a.r.Render(text); err == nil {
			return s
		}
	}
	return strings.TrimRight(text, "\n") + "\n"
}

// printMessage writes one transcript entry the way the REPL shows it.
func printMessage(w io.Writer, r *answerRenderer, msg model.Message) {
	stamp := DimStyle.Render(msg.Timestamp.Local().Format("15:04"))
	switch msg.Sender {
	case model.SenderUser:
		fmt.Fprintf(w, "%s %s\n%s\n", infoColor.Sprint("You"), stamp, msg.Content)
	case model.SenderAI:
		fmt.Fprintf(w, "%s %s\n%s", successColor.Sprint("Assistant"), stamp, r.Render(msg.Content))
	default:
		fmt.Fprintf(w, "%s %s\n%s\n", errorColor.Sprint("Error"), stamp, msg.Content)
		if msg.IsRetryable() {
			fmt.Fprintln(w, DimStyle.Render("Type /retry to send it again."))
		}
	}
}
