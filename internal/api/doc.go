// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the Linux assistant backend.
//
// Every payload is decoded into typed DTOs and validated before it is
// converted into model types, so the rest of the application never sees
// half-formed responses. All failures are reported as *ClientError with an
// ErrorType that callers switch on.
//
// # Key Types
//
//   - Client: thread-safe backend client with a mutable base URL
//   - ClientConfig: base URL and per-class timeouts
//   - ClientError / ErrorType: the error taxonomy
//   - AskRequest / AskResponse: the question round trip
//
// # Usage
//
//	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: url})
//	resp, err := client.Ask(ctx, api.AskRequest{Question: q, UserID: id})
//	switch {
//	case api.IsSessionExpired(err):
//	    // send the user back to login
//	case api.IsTimeout(err):
//	    // offer a retry
//	}
package api
