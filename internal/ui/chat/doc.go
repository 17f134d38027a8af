// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view of the linuxassist TUI.

The view is a thin Bubble Tea shell over controller.Controller: every user
action becomes a tea.Cmd that calls the controller off the UI goroutine,
and every controller event triggers a re-read of its state.

# Key Components

## Model (model.go)

Holds the viewport, the text input and the spinner.

## Update Loop (update.go)

Keyboard handling, operation results and window resizes.

## View Rendering (view.go)

Header with the conversation title and connection state, the conversation
sidebar, the transcript rendered through glamour, and the status bar.

## Slash Commands (commands.go)

	/new                start a conversation
	/rename <title>     rename the selected conversation
	/delete             delete the selected conversation (asks first)
	/clear              delete every conversation (asks first)
	/url <url>          switch backend
	/retry              resend the last failed question
	/export [md|json]   save the conversation to a file
	/dark               toggle dark mode
	/logout             sign out
	/help               list commands
*/
package chat
