// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/linuxassist/internal/config"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/pubsub"
)

// Persisted keys. The names match the browser client so state exported
// from it can be imported verbatim.
const (
	KeyIdentity = "linuxAssistantUser"
	KeyDarkMode = "linuxAssistantDarkMode"
	KeyAPIURL   = "linuxAssistantApiUrl"
)

// ErrInvalidIdentity is returned when storing an identity without an id.
var ErrInvalidIdentity = errors.New("identity must have an id")

// =============================================================================
// EVENTS
// =============================================================================

// EventKind names the piece of state that changed.
type EventKind int

const (
	EventIdentity EventKind = iota
	EventDarkMode
	EventAPIURL
)

func (k EventKind) String() string {
	switch k {
	case EventIdentity:
		return "auth-changed"
	case EventDarkMode:
		return "dark-mode-changed"
	case EventAPIURL:
		return "api-url-changed"
	default:
		return "unknown"
	}
}

// Source tells whether a change came from this process or another one.
type Source int

const (
	SourceLocal Source = iota
	SourceExternal
)

// Event is delivered to subscribers after the change is persisted.
type Event struct {
	Kind   EventKind
	Source Source
}

// =============================================================================
// STORE
// =============================================================================

// Backend is the persistence the store needs. *storage.KV implements it.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Snapshot(ctx context.Context) (map[string]string, error)
}

// watcher is implemented by backends that can report external writes.
type watcher interface {
	Watch(ctx context.Context, debounce time.Duration) (<-chan struct{}, error)
}

// Options configure a Store.
type Options struct {
	// DefaultAPIURL is returned by APIURL until the user picks one.
	DefaultAPIURL string

	// SyncInterval is the reconciliation poll (default 500ms).
	SyncInterval time.Duration

	Logger *zap.Logger
}

// Store is the observable session state. It is safe for concurrent use.
type Store struct {
	kv Backend

	mu       sync.RWMutex
	identity *model.Identity
	darkMode bool
	apiURL   string

	// Local writes in flight and the write counter at which each key
	// was last written here. reload leaves those keys alone.
	writes  uint64
	pending map[string]int
	written map[string]uint64

	defaultURL   string
	syncInterval time.Duration
	hub          *pubsub.Hub[Event]
	logger       *zap.Logger
}

// New loads the current state from kv.
func New(ctx context.Context, kv Backend, opts Options) (*Store, error) {
	if opts.DefaultAPIURL == "" {
		opts.DefaultAPIURL = config.DefaultAPIURL
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Store{
		kv:           kv,
		defaultURL:   opts.DefaultAPIURL,
		syncInterval: opts.SyncInterval,
		pending:      map[string]int{},
		written:      map[string]uint64{},
		hub:          pubsub.NewHub[Event](),
		logger:       opts.Logger.Named("session"),
	}
	if _, err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Subscribe registers for change events.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.hub.Subscribe()
}

// =============================================================================
// IDENTITY
// =============================================================================

// Identity returns the signed-in user, if any.
func (s *Store) Identity() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return model.Identity{}, false
	}
	return *s.identity, true
}

// SetIdentity persists a new identity and notifies subscribers.
func (s *Store) SetIdentity(ctx context.Context, identity model.Identity) error {
	if !identity.Valid() {
		return ErrInvalidIdentity
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	s.beginWrite(KeyIdentity)
	err = s.kv.Set(ctx, KeyIdentity, string(data))
	s.endWrite(KeyIdentity, err == nil, func() { s.identity = &identity })
	if err != nil {
		return err
	}

	s.logger.Info("identity stored", zap.String("user_id", identity.ID))
	s.hub.Publish(Event{Kind: EventIdentity, Source: SourceLocal})
	return nil
}

// ClearIdentity signs the user out everywhere.
func (s *Store) ClearIdentity(ctx context.Context) error {
	var had bool
	s.beginWrite(KeyIdentity)
	err := s.kv.Delete(ctx, KeyIdentity)
	s.endWrite(KeyIdentity, err == nil, func() {
		had = s.identity != nil
		s.identity = nil
	})
	if err != nil {
		return err
	}

	if had {
		s.logger.Info("identity cleared")
	}
	s.hub.Publish(Event{Kind: EventIdentity, Source: SourceLocal})
	return nil
}

// =============================================================================
// API URL
// =============================================================================

// APIURL returns the backend URL chosen by the user, or the default.
func (s *Store) APIURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.apiURL == "" {
		return s.defaultURL
	}
	return s.apiURL
}

// SetAPIURL validates, persists and returns the normalised URL.
func (s *Store) SetAPIURL(ctx context.Context, raw string) (string, error) {
	normalized, err := config.NormalizeAPIURL(raw)
	if err != nil {
		return "", err
	}
	s.beginWrite(KeyAPIURL)
	err = s.kv.Set(ctx, KeyAPIURL, normalized)
	s.endWrite(KeyAPIURL, err == nil, func() { s.apiURL = normalized })
	if err != nil {
		return "", err
	}

	s.hub.Publish(Event{Kind: EventAPIURL, Source: SourceLocal})
	return normalized, nil
}

// =============================================================================
// DARK MODE
// =============================================================================

// DarkMode returns the dark-mode preference.
func (s *Store) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode
}

// SetDarkMode persists the dark-mode preference.
func (s *Store) SetDarkMode(ctx context.Context, enabled bool) error {
	s.beginWrite(KeyDarkMode)
	err := s.kv.Set(ctx, KeyDarkMode, strconv.FormatBool(enabled))
	s.endWrite(KeyDarkMode, err == nil, func() { s.darkMode = enabled })
	if err != nil {
		return err
	}

	s.hub.Publish(Event{Kind: EventDarkMode, Source: SourceLocal})
	return nil
}

// ToggleDarkMode flips the preference and returns the new value.
func (s *Store) ToggleDarkMode(ctx context.Context) (bool, error) {
	next := !s.DarkMode()
	if err := s.SetDarkMode(ctx, next); err != nil {
		return s.DarkMode(), err
	}
	return next, nil
}

// beginWrite marks key as being written by this process.
func (s *Store) beginWrite(key string) {
	s.mu.Lock()
	s.pending[key]++
	s.mu.Unlock()
}

// endWrite clears the mark and, when the write was persisted, applies it
// to the cache and stamps key with the next write counter.
func (s *Store) endWrite(key string, persisted bool, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key]--
	if !persisted {
		return
	}
	s.writes++
	s.written[key] = s.writes
	apply()
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile re-reads persisted state and emits one external event per key
// whose value differs from what this process last saw.
func (s *Store) Reconcile(ctx context.Context) error {
	changed, err := s.reload(ctx)
	if err != nil {
		return err
	}
	for _, kind := range changed {
		s.logger.Debug("external change", zap.Stringer("kind", kind))
		s.hub.Publish(Event{Kind: kind, Source: SourceExternal})
	}
	return nil
}

// Run reconciles whenever the backing file changes and at least every
// sync interval, until ctx is done. File notifications are optional; the
// poll alone is enough to converge.
func (s *Store) Run(ctx context.Context) {
	var changes <-chan struct{}
	if w, ok := s.kv.(watcher); ok {
		ch, err := w.Watch(ctx, 50*time.Millisecond)
		if err != nil {
			s.logger.Warn("file watch unavailable, polling only", zap.Error(err))
		} else {
			changes = ch
		}
	}

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.reconcileLogged(ctx)
		case <-ticker.C:
			s.reconcileLogged(ctx)
		}
	}
}

func (s *Store) reconcileLogged(ctx context.Context) {
	if err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("session reconcile failed", zap.Error(err))
	}
}

// reload replaces the cached state with the persisted one and reports
// which kinds changed.
func (s *Store) reload(ctx context.Context) ([]EventKind, error) {
	s.mu.RLock()
	since := s.writes
	s.mu.RUnlock()

	snapshot, err := s.kv.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	identity := s.parseIdentity(snapshot[KeyIdentity])
	darkMode, _ := strconv.ParseBool(snapshot[KeyDarkMode])
	apiURL := snapshot[KeyAPIURL]
	if apiURL != "" {
		if normalized, err := config.NormalizeAPIURL(apiURL); err == nil {
			apiURL = normalized
		} else {
			s.logger.Warn("ignoring invalid stored API URL", zap.String("url", apiURL), zap.Error(err))
			apiURL = ""
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A key written here after the snapshot was taken is newer than it.
	stale := func(key string) bool {
		return s.pending[key] > 0 || s.written[key] > since
	}

	var changed []EventKind
	if !stale(KeyIdentity) && !sameIdentity(s.identity, identity) {
		changed = append(changed, EventIdentity)
		s.identity = identity
	}
	if !stale(KeyDarkMode) && s.darkMode != darkMode {
		changed = append(changed, EventDarkMode)
		s.darkMode = darkMode
	}
	if !stale(KeyAPIURL) && s.apiURL != apiURL {
		changed = append(changed, EventAPIURL)
		s.apiURL = apiURL
	}
	return changed, nil
}

func (s *Store) parseIdentity(raw string) *model.Identity {
	if raw == "" {
		return nil
	}
	var identity model.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil || !identity.Valid() {
		s.logger.Warn("ignoring malformed stored identity", zap.Error(err))
		return nil
	}
	return &identity
}

func sameIdentity(a, b *model.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
