// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry sets up OpenTelemetry tracing for backend requests.
//
// Spans are exported as JSON lines to a local file; nothing leaves the
// machine. When tracing is disabled Init returns a no-op provider.
//
// # Usage
//
//	tp, shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cli.Version)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//	client := api.NewClientWithConfig(&api.ClientConfig{TracerProvider: tp})
package telemetry
