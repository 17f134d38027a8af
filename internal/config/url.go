// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURLScheme is returned for anything other than http/https.
	ErrInvalidURLScheme = errors.New("URL scheme must be http or https")

	// ErrMissingHost is returned when the URL has no host.
	ErrMissingHost = errors.New("URL must include a host")
)

// NormalizeAPIURL validates a backend base URL and returns it without
// surrounding whitespace or trailing slashes.
func NormalizeAPIURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalidURLScheme
	}
	if parsed.Host == "" {
		return "", ErrMissingHost
	}
	return trimmed, nil
}

// IsLocalhost reports whether host (optionally with a port) is a loopback
// name or address.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// IsInsecureRemote reports whether rawURL sends credentials in clear text to
// a host other than this machine.
func IsInsecureRemote(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Scheme, "http") && !IsLocalhost(parsed.Host)
}
