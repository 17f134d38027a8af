// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/linuxassist/internal/auth"
)

// =============================================================================
// LOGIN / REGISTER
// =============================================================================

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuth(cmd, opts, auth.Form{Mode: auth.ModeLogin, Email: email})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted when empty)")
	return cmd
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuth(cmd, opts, auth.Form{Mode: auth.ModeRegister, Username: username, Email: email})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "display name (prompted when empty)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted when empty)")
	return cmd
}

// runAuth prompts for missing fields, then submits the form.
func runAuth(cmd *cobra.Command, opts *rootOptions, form auth.Form) error {
	p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	var err error
	if form.Mode == auth.ModeRegister && form.Username == "" {
		if form.Username, err = p.Line("Username: "); err != nil {
			return err
		}
	}
	if form.Email == "" {
		if form.Email, err = p.Line("Email: "); err != nil {
			return err
		}
	}
	if form.Password, err = p.Password("Password: "); err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		return err
	}

	rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	identity, err := auth.Submit(cmd.Context(), rt.client, rt.store, form)
	if err != nil {
		return fmt.Errorf("%s", auth.Message(err))
	}
	printSuccess(out(cmd), "Signed in as %s", identity.DisplayName())
	return nil
}

// =============================================================================
// LOGOUT / WHOAMI
// =============================================================================

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, ok := rt.store.Identity(); !ok {
				fmt.Fprintln(out(cmd), "Not signed in.")
				return nil
			}
			if err := rt.store.ClearIdentity(cmd.Context()); err != nil {
				return err
			}
			printSuccess(out(cmd), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			w := out(cmd)
			identity, ok := rt.store.Identity()
			if !ok {
				printField(w, "User:", DimStyle.Render("not signed in"))
			} else {
				printField(w, "User:", identity.Username)
				printField(w, "User ID:", identity.ID)
			}
			printField(w, "Backend:", rt.client.BaseURL())
			return nil
		},
	}
}
