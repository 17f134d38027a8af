// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package connectivity tracks whether the backend is reachable.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/pubsub"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrServerUnreachable is matched by every exhausted health check.
	ErrServerUnreachable = errors.New("server unreachable")

	// ErrRetryThrottled is returned by Reconnect when called too often.
	ErrRetryThrottled = errors.New("reconnect attempted too soon")

	// ErrNetworkOffline is recorded as the last error when the host loses
	// its network.
	ErrNetworkOffline = errors.New("network offline")
)

// UnreachableError reports an exhausted health check. It matches both
// ErrServerUnreachable and the last underlying failure.
type UnreachableError struct {
	Attempts int
	Last     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("server unreachable after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *UnreachableError) Unwrap() []error {
	return []error{ErrServerUnreachable, e.Last}
}

// =============================================================================
// MONITOR
// =============================================================================

// HealthChecker performs one bounded health check. *api.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context, timeout time.Duration) (*api.HealthStatus, error)
}

// Options configure a Monitor. Zero values select the defaults.
type Options struct {
	// OnlineTimeout bounds the check run when the network comes back (5s).
	OnlineTimeout time.Duration

	// ReconnectTimeout bounds a user-triggered reconnect (2s).
	ReconnectTimeout time.Duration

	// Limiter throttles Reconnect (one per second).
	Limiter *rate.Limiter

	// Backoff returns the wait after the given zero-based failed attempt
	// ((attempt+1) seconds).
	Backoff func(attempt int) time.Duration

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *zap.Logger
}

// Monitor holds the connected flag and runs health checks. It starts
// disconnected and is safe for concurrent use.
type Monitor struct {
	checker HealthChecker
	opts    Options

	mu        sync.RWMutex
	connected bool
	lastErr   error
	lastCheck time.Time

	hub    *pubsub.Hub[bool]
	logger *zap.Logger
}

// NewMonitor creates a monitor around checker.
func NewMonitor(checker HealthChecker, opts Options) *Monitor {
	if opts.OnlineTimeout <= 0 {
		opts.OnlineTimeout = 5 * time.Second
	}
	if opts.ReconnectTimeout <= 0 {
		opts.ReconnectTimeout = 2 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{
		checker: checker,
		opts:    opts,
		hub:     pubsub.NewHub[bool](),
		logger:  opts.Logger.Named("connectivity"),
	}
}

// Connected reports the last known reachability.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// LastError returns the failure that last marked the backend unreachable.
func (m *Monitor) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// LastCheck returns when the state was last updated.
func (m *Monitor) LastCheck() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCheck
}

// Subscribe delivers the new connected value on every transition.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	return m.hub.Subscribe()
}

// MarkConnected records that a request reached the backend.
func (m *Monitor) MarkConnected() {
	m.set(true, nil)
}

// MarkDisconnected records that the backend could not be reached.
func (m *Monitor) MarkDisconnected(cause error) {
	m.set(false, cause)
}

func (m *Monitor) set(connected bool, cause error) {
	m.mu.Lock()
	changed := m.connected != connected
	m.connected = connected
	m.lastErr = cause
	m.lastCheck = time.Now()
	m.mu.Unlock()

	if changed {
		m.logger.Info("connectivity changed", zap.Bool("connected", connected), zap.Error(cause))
		m.hub.Publish(connected)
	}
}

// =============================================================================
// HEALTH CHECKS
// =============================================================================

// CheckHealth queries the backend up to maxRetries+1 times, each bounded by
// timeout. Timeouts and non-2xx answers are retried after a growing pause;
// any other failure (refused connection, bad URL) ends the check at once.
// On success the monitor is marked connected. On failure it is marked
// disconnected and an *UnreachableError wrapping the last failure is
// returned.
func (m *Monitor) CheckHealth(ctx context.Context, maxRetries int, timeout time.Duration) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++
		_, err := m.checker.Health(ctx, timeout)
		if err == nil {
			m.set(true, nil)
			return nil
		}
		lastErr = err
		m.logger.Debug("health check failed", zap.Int("attempt", attempt+1), zap.Error(err))

		if !retryable(err) || attempt == maxRetries {
			break
		}
		if err := m.opts.Sleep(ctx, m.opts.Backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	m.set(false, lastErr)
	return &UnreachableError{Attempts: attempts, Last: lastErr}
}

func retryable(err error) bool {
	return api.IsTimeout(err) || api.StatusCode(err) != 0
}

// SetNetworkOnline reacts to the host's network state. Going offline marks
// the backend unreachable immediately; coming back runs one health check.
func (m *Monitor) SetNetworkOnline(ctx context.Context, online bool) error {
	if !online {
		m.set(false, ErrNetworkOffline)
		return nil
	}
	return m.CheckHealth(ctx, 0, m.opts.OnlineTimeout)
}

// Reconnect is the user-triggered retry. It is throttled so that holding
// the key down does not flood the backend.
func (m *Monitor) Reconnect(ctx context.Context) error {
	if !m.opts.Limiter.Allow() {
		return ErrRetryThrottled
	}
	return m.CheckHealth(ctx, 0, m.opts.ReconnectTimeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
