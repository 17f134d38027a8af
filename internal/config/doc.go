// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// linuxassist.
//
// # Key Types
//
//   - Config: main configuration structure
//   - APIConfig: backend URL default and request timeouts
//   - SessionConfig: location of the shared session state and its poll rate
//   - LoggingConfig / TelemetryConfig: rotating log and trace files
//   - UIConfig: TUI defaults
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (LINUXASSIST_*), including those set by a .env file
//   - ~/.linuxassist/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := api.NewClientWithConfig(&api.ClientConfig{
//	    BaseURL:        cfg.API.DefaultURL,
//	    RequestTimeout: cfg.API.RequestTimeout(),
//	})
package config
