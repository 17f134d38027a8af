// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/config"
	"github.com/jeranaias/linuxassist/internal/connectivity"
	"github.com/jeranaias/linuxassist/internal/controller"
	"github.com/jeranaias/linuxassist/internal/logging"
	"github.com/jeranaias/linuxassist/internal/session"
	"github.com/jeranaias/linuxassist/internal/storage"
	"github.com/jeranaias/linuxassist/internal/telemetry"
)

// =============================================================================
// RUNTIME
// =============================================================================

// runtime is everything a command may need, wired from the config.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	kv      *storage.KV
	store   *session.Store
	client  *api.Client
	monitor *connectivity.Monitor
	ctrl    *controller.Controller

	cancel  context.CancelFunc
	closers []func()
}

// bootOptions select the optional parts of the runtime.
type bootOptions struct {
	// controller creates the session controller.
	controller bool

	// background runs the session sync loop and the network watcher.
	background bool
}

// loadConfig reads the config named by --config, or the default one.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.configPath != "" {
		return config.LoadFromPath(opts.configPath)
	}
	return config.Load()
}

// bootstrap builds the runtime. Close must be called when err is nil.
func bootstrap(ctx context.Context, opts *rootOptions, stderr io.Writer, boot bootOptions) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	logger, closeLog, err := logging.New(cfg.Logging, logging.Options{Verbose: opts.verbose})
	if err != nil {
		return nil, err
	}
	rt.logger = logger
	rt.closers = append(rt.closers, func() { _ = closeLog() })

	tp, shutdown, err := telemetry.Init(ctx, cfg.Telemetry, Version)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	})

	kv, err := storage.Open(ctx, cfg.Session.StatePath)
	if err != nil {
		return nil, err
	}
	rt.kv = kv
	rt.closers = append(rt.closers, func() { _ = kv.Close() })

	store, err := session.New(ctx, kv, session.Options{
		DefaultAPIURL: cfg.API.DefaultURL,
		SyncInterval:  cfg.Session.SyncInterval(),
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	rt.store = store

	baseURL := store.APIURL()
	if opts.apiURL != "" {
		if baseURL, err = config.NormalizeAPIURL(opts.apiURL); err != nil {
			return nil, fmt.Errorf("--api-url: %w", err)
		}
	}
	if config.IsInsecureRemote(baseURL) {
		printWarn(stderr, "%s is a remote server over plain HTTP; credentials are sent unencrypted", baseURL)
	}

	rt.client = api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:        baseURL,
		RequestTimeout: cfg.API.RequestTimeout(),
		AskTimeout:     cfg.API.AskTimeout(),
		TracerProvider: tp,
		Logger:         logger,
	})
	rt.monitor = connectivity.NewMonitor(rt.client, connectivity.Options{Logger: logger})

	if boot.controller {
		rt.ctrl = controller.New(rt.client, store, rt.monitor, controller.Options{
			StartupRetries: cfg.API.StartupRetries,
			StartupTimeout: cfg.API.StartupTimeout(),
			HealthTimeout:  cfg.API.HealthTimeout(),
			Logger:         logger,
		})
		rt.closers = append(rt.closers, rt.ctrl.Close)
	}

	if boot.background {
		bgCtx, cancel := context.WithCancel(ctx)
		rt.cancel = cancel
		go store.Run(bgCtx)
		if !isLoopback(baseURL) {
			go rt.monitor.WatchNetwork(bgCtx, time.Duration(cfg.UI.NetworkCheckSecs)*time.Second, nil)
		}
	}

	logger.Debug("runtime ready",
		zap.String("api_url", baseURL),
		zap.String("state", cfg.Session.StatePath),
		zap.Bool("controller", boot.controller),
	)
	ok = true
	return rt, nil
}

// Close stops background work and releases resources in reverse order.
func (rt *runtime) Close() {
	if rt.cancel != nil {
		rt.cancel()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func isLoopback(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return config.IsLocalhost(u.Hostname())
}
