// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/auth"
	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/model"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions are the persistent flags.
type rootOptions struct {
	configPath string
	apiURL     string
	verbose    bool
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		printFail(root.ErrOrStderr(), "%s", errorText(err))
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "linuxassist",
		Short:         "Terminal client for the Linux Command Assistant",
		Long:          "linuxassist answers questions about Linux commands.\nRun without arguments for the full-screen interface.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.linuxassist/config.toml)")
	flags.StringVar(&opts.apiURL, "api-url", "", "backend URL for this run")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr as well as the log file")

	root.AddCommand(
		newChatCmd(opts),
		newAskCmd(opts),
		newLoginCmd(opts),
		newRegisterCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newConversationsCmd(opts),
		newHealthCmd(opts),
		newConfigCmd(opts),
		newThemeCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "linuxassist %s\n", Version)
			printField(out, "Commit:", GitCommit)
			printField(out, "Built:", BuildDate)
		},
	}
}

// errorText turns an error into the line printed before exiting.
func errorText(err error) string {
	var fe *auth.FormError
	switch {
	case errors.As(err, &fe):
		return fe.Message
	case errors.Is(err, model.ErrIdentityRequired), errors.Is(err, controller.ErrUnauthenticated):
		return "Not signed in. Run `linuxassist login` first."
	case api.IsSessionExpired(err):
		return "Your session has expired. Please log in again."
	case api.IsConnection(err), api.IsTimeout(err):
		return "Cannot reach the server: " + api.DetailOf(err)
	case api.StatusCode(err) != 0:
		return api.DetailOf(err)
	default:
		return err.Error()
	}
}

// out is a small alias so subcommands read naturally.
func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
