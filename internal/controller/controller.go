// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/conversations"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/pubsub"
	"github.com/jeranaias/linuxassist/internal/session"
	"github.com/jeranaias/linuxassist/internal/transcript"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyQuestion is returned for blank input.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrBusy is returned while a question is in flight.
	ErrBusy = errors.New("a question is already being answered")

	// ErrUnauthenticated is returned when no user is signed in.
	ErrUnauthenticated = errors.New("not signed in")

	// ErrSessionExpired is returned when the backend no longer knows the
	// signed-in user. It matches api.IsSessionExpired.
	ErrSessionExpired = api.ErrSessionExpired
)

// =============================================================================
// STATE AND EVENTS
// =============================================================================

// State is the submission state.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	// StateErrorShown accepts input like StateIdle.
	StateErrorShown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateErrorShown:
		return "error"
	default:
		return "unknown"
	}
}

// EventKind names a controller notification.
type EventKind int

const (
	EventTranscriptChanged EventKind = iota
	EventRegistryChanged
	EventStateChanged
	EventAuthRequired
	EventConnectivityChanged
	EventSessionChanged
)

func (k EventKind) String() string {
	switch k {
	case EventTranscriptChanged:
		return "transcript"
	case EventRegistryChanged:
		return "registry"
	case EventStateChanged:
		return "state"
	case EventAuthRequired:
		return "auth-required"
	case EventConnectivityChanged:
		return "connectivity"
	case EventSessionChanged:
		return "session"
	default:
		return "unknown"
	}
}

// Event is a hint to re-read controller state.
type Event struct {
	Kind EventKind
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Backend is everything the controller needs from *api.Client.
type Backend interface {
	conversations.Backend
	transcript.Loader
	Ask(ctx context.Context, req api.AskRequest) (*api.AskResponse, error)
	SetBaseURL(baseURL string)
}

// Session is the persisted user state. *session.Store implements it.
type Session interface {
	Identity() (model.Identity, bool)
	ClearIdentity(ctx context.Context) error
	APIURL() string
	SetAPIURL(ctx context.Context, raw string) (string, error)
	Subscribe() (<-chan session.Event, func())
}

// Connectivity is the reachability tracker. *connectivity.Monitor
// implements it.
type Connectivity interface {
	Connected() bool
	MarkConnected()
	MarkDisconnected(cause error)
	CheckHealth(ctx context.Context, maxRetries int, timeout time.Duration) error
	Reconnect(ctx context.Context) error
	Subscribe() (<-chan bool, func())
}

// Options tune the controller. Zero values select the defaults.
type Options struct {
	// StartupRetries and StartupTimeout bound the health check in Start
	// (1 retry, 3s).
	StartupRetries int
	StartupTimeout time.Duration

	// HealthTimeout bounds the check after an API URL change (5s).
	HealthTimeout time.Duration

	// ResyncTimeout bounds the background list refresh after an answer
	// (10s).
	ResyncTimeout time.Duration

	Logger *zap.Logger
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller coordinates one chat session. Methods block on network calls
// and are meant to be run off the UI goroutine; all are safe for
// concurrent use.
type Controller struct {
	backend  Backend
	session  Session
	monitor  Connectivity
	registry *conversations.Registry
	messages *transcript.Transcript
	opts     Options
	logger   *zap.Logger

	mu    sync.Mutex
	state State
	crud  int

	hub    *pubsub.Hub[Event]
	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
}

// New wires a controller and starts forwarding change notifications.
// Call Close to stop.
func New(backend Backend, sess Session, monitor Connectivity, opts Options) *Controller {
	if opts.StartupRetries <= 0 {
		opts.StartupRetries = 1
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 3 * time.Second
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	if opts.ResyncTimeout <= 0 {
		opts.ResyncTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:  backend,
		session:  sess,
		monitor:  monitor,
		registry: conversations.NewRegistry(backend, monitor, opts.Logger),
		messages: transcript.New(backend, opts.Logger),
		opts:     opts,
		logger:   opts.Logger.Named("controller"),
		hub:      pubsub.NewHub[Event](),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.forward()
	return c
}

// Close stops background work and closes every subscription.
func (c *Controller) Close() {
	c.cancel()
	c.bg.Wait()
	c.hub.Close()
}

// Subscribe delivers controller events.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.hub.Subscribe()
}

func (c *Controller) publish(kind EventKind) {
	c.hub.Publish(Event{Kind: kind})
}

// forward relays changes of the owned stores to subscribers.
func (c *Controller) forward() {
	regCh, regStop := c.registry.Subscribe()
	trCh, trStop := c.messages.Subscribe()
	connCh, connStop := c.monitor.Subscribe()
	sessCh, sessStop := c.session.Subscribe()

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		defer regStop()
		defer trStop()
		defer connStop()
		defer sessStop()
		for {
			select {
			case <-c.ctx.Done():
				return
			case _, ok := <-regCh:
				if !ok {
					return
				}
				c.publish(EventRegistryChanged)
			case _, ok := <-trCh:
				if !ok {
					return
				}
				c.publish(EventTranscriptChanged)
			case _, ok := <-connCh:
				if !ok {
					return
				}
				c.publish(EventConnectivityChanged)
			case ev, ok := <-sessCh:
				if !ok {
					return
				}
				c.handleSessionEvent(ev)
			}
		}
	}()
}

// handleSessionEvent applies changes made by another process.
func (c *Controller) handleSessionEvent(ev session.Event) {
	if ev.Source != session.SourceExternal {
		return
	}
	switch ev.Kind {
	case session.EventAPIURL:
		c.backend.SetBaseURL(c.session.APIURL())
		c.monitor.MarkDisconnected(nil)
		c.publish(EventSessionChanged)
	case session.EventIdentity:
		if _, ok := c.session.Identity(); !ok {
			c.registry.Reset()
			c.messages.Clear()
			c.setState(StateIdle)
			c.publish(EventAuthRequired)
			return
		}
		c.publish(EventSessionChanged)
	default:
		c.publish(EventSessionChanged)
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the submission state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsLoading reports whether a question or a conversation operation is
// running.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateSubmitting || c.crud > 0
}

// Registry exposes the conversation list.
func (c *Controller) Registry() *conversations.Registry { return c.registry }

// Transcript exposes the message list.
func (c *Controller) Transcript() *transcript.Transcript { return c.messages }

// Connected reports backend reachability.
func (c *Controller) Connected() bool { return c.monitor.Connected() }

// Identity returns the signed-in user.
func (c *Controller) Identity() (model.Identity, bool) { return c.session.Identity() }

// SelectedID returns the selected conversation, or "".
func (c *Controller) SelectedID() string { return c.messages.ConversationID() }

// Title returns the selected conversation's title, or the default header.
func (c *Controller) Title() string {
	if id := c.messages.ConversationID(); id != "" {
		if conv, ok := c.registry.Get(id); ok && conv.Title != "" {
			return conv.Title
		}
	}
	return model.DefaultTitle
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		c.publish(EventStateChanged)
	}
}

// beginCRUD marks a conversation operation as running. The returned
// function ends it.
func (c *Controller) beginCRUD() func() {
	c.mu.Lock()
	c.crud++
	c.mu.Unlock()
	c.publish(EventStateChanged)
	return func() {
		c.mu.Lock()
		c.crud--
		c.mu.Unlock()
		c.publish(EventStateChanged)
	}
}

// requireIdentity returns the signed-in user or emits EventAuthRequired.
func (c *Controller) requireIdentity() (model.Identity, error) {
	identity, ok := c.session.Identity()
	if !ok {
		c.publish(EventAuthRequired)
		return model.Identity{}, ErrUnauthenticated
	}
	return identity, nil
}

// resync refreshes the conversation list in the background. Failures are
// logged only.
func (c *Controller) resync(userID string) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.ResyncTimeout)
		defer cancel()
		if err := c.registry.List(ctx, userID); err != nil && !errors.Is(err, conversations.ErrStale) {
			c.logger.Debug("conversation resync failed", zap.Error(err))
		}
	}()
}
