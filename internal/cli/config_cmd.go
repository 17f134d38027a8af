// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/linuxassist/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration and change the backend URL",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			fmt.Fprint(out(cmd), cfg.String())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config, state and log file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			path := opts.configPath
			if path == "" {
				if path, err = config.ConfigPath(); err != nil {
					return err
				}
			}
			w := out(cmd)
			printField(w, "Config:", path)
			printField(w, "State:", cfg.Session.StatePath)
			printField(w, "Log:", cfg.Logging.File)
			if cfg.Telemetry.Enabled {
				printField(w, "Traces:", cfg.Telemetry.TraceFile)
			}
			return nil
		},
	})

	var saveDefault bool
	setURL := &cobra.Command{
		Use:   "set-url URL",
		Short: "Switch the backend for every linuxassist window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			normalized, err := rt.store.SetAPIURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rt.client.SetBaseURL(normalized)
			printSuccess(out(cmd), "API URL set to %s", normalized)

			if saveDefault {
				rt.cfg.API.DefaultURL = normalized
				path := opts.configPath
				if path == "" {
					err = config.Save(rt.cfg)
				} else {
					err = config.SaveTOML(rt.cfg, path)
				}
				if err != nil {
					return err
				}
				printSuccess(out(cmd), "Saved as the default in the config file")
			}

			if err := rt.monitor.CheckHealth(cmd.Context(), 0, rt.cfg.API.HealthTimeout()); err != nil {
				printWarn(out(cmd), "Cannot connect to the server at %s. Please check the URL and try again.", normalized)
			}
			return nil
		},
	}
	setURL.Flags().BoolVar(&saveDefault, "save", false, "also store the URL as the config default")
	cmd.AddCommand(setURL)

	return cmd
}

func newThemeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light|toggle]",
		Short:     "Show or change the dark mode preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"dark", "light", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				switch strings.ToLower(args[0]) {
				case "dark":
					err = rt.store.SetDarkMode(ctx, true)
				case "light":
					err = rt.store.SetDarkMode(ctx, false)
				case "toggle":
					_, err = rt.store.ToggleDarkMode(ctx)
				default:
					return fmt.Errorf("unknown theme %q (want dark, light or toggle)", args[0])
				}
				if err != nil {
					return err
				}
			}

			mode := "light"
			if rt.store.DarkMode() {
				mode = "dark"
			}
			fmt.Fprintf(out(cmd), "Theme: %s\n", mode)
			return nil
		},
	}
}
