// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd(opts *rootOptions) *cobra.Command {
	var (
		retries int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr(), bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if !cmd.Flags().Changed("retries") {
				retries = rt.cfg.API.HealthRetries
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = rt.cfg.API.HealthTimeout()
			}

			w := out(cmd)
			if err := rt.monitor.CheckHealth(cmd.Context(), retries, timeout); err != nil {
				printFail(w, "Cannot reach %s", rt.client.BaseURL())
				return err
			}
			printSuccess(w, "Backend reachable at %s", rt.client.BaseURL())

			if status, err := rt.client.Health(cmd.Context(), timeout); err == nil {
				printField(w, "Status:", status.Status)
				if status.ModelAPI != "" {
					printField(w, "Model API:", status.ModelAPI)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&retries, "retries", 2, "retries after the first failed check")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "timeout per check")
	return cmd
}
