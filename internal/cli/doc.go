// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the linuxassist command line.
//
// With no subcommand linuxassist starts the full-screen TUI. The
// subcommands cover the same operations for scripts and plain terminals:
//
//	linuxassist chat                      line-based REPL
//	linuxassist ask "how do I ..."        one-shot question
//	linuxassist login | register | logout | whoami
//	linuxassist conversations list|new|rename|delete|clear|export
//	linuxassist health [--retries N] [--timeout D]
//	linuxassist config show|path|set-url URL
//	linuxassist theme [dark|light|toggle]
//	linuxassist version
//
// Every command shares the session state with the TUI, so logging in here
// signs in every open linuxassist window.
package cli
