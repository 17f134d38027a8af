// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the linuxassist TUI.

All colors are Lip Gloss AdaptiveColor values. Which variant is used follows
the user's dark mode preference rather than terminal detection: NewTheme
tells Lip Gloss which background to assume.

# Color System (colors.go)

  - Purple: primary accent, assistant messages, selections
  - Cyan: brand color, user highlights, key hints
  - Emerald: connected indicator, success
  - Rose: errors and the disconnected indicator
  - Amber: warnings

# Theme System (theme.go)

	theme := styles.NewTheme(store.DarkMode())
	header := theme.Header.Render(ctrl.Title())

# Layout

GetLayoutMode hides the conversation sidebar on narrow terminals.
*/
package styles
