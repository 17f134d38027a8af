// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectivity

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// NetworkCheck reports whether the host currently has a usable network.
type NetworkCheck func() bool

// HasActiveInterface is the default NetworkCheck: true when any non-loopback
// interface is up and has an address.
func HasActiveInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return true
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if addrs, err := iface.Addrs(); err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// WatchNetwork polls check every interval and forwards transitions to
// SetNetworkOnline until ctx is done. A backend on localhost stays
// reachable without a network, so callers skip this for loopback URLs.
func (m *Monitor) WatchNetwork(ctx context.Context, interval time.Duration, check NetworkCheck) {
	if check == nil {
		check = HasActiveInterface
	}
	online := check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := check()
			if now == online {
				continue
			}
			online = now
			m.logger.Info("network state changed", zap.Bool("online", online))
			if err := m.SetNetworkOnline(ctx, online); err != nil {
				m.logger.Warn("backend unreachable after network returned", zap.Error(err))
			}
		}
	}
}
