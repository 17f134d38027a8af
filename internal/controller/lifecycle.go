// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/model"
)

// ServerDownText is shown when the initial health check fails.
const ServerDownText = "Cannot connect to the server. Please check if the backend is running."

// =============================================================================
// STARTUP
// =============================================================================

// Start runs the initial load: a health check, the conversation list, and
// the most recent conversation's messages.
func (c *Controller) Start(ctx context.Context) error {
	identity, err := c.requireIdentity()
	if err != nil {
		return err
	}
	defer c.beginCRUD()()

	c.messages.Clear()
	if err := c.monitor.CheckHealth(ctx, c.opts.StartupRetries, c.opts.StartupTimeout); err != nil {
		c.messages.AppendLocal(model.NewErrorMessage(ServerDownText, "", ""))
		return err
	}

	if err := c.registry.List(ctx, identity.ID); err != nil {
		c.logger.Warn("failed to load conversations", zap.Error(err))
		c.messages.Reset(false)
		return err
	}
	return c.selectLatest(ctx, identity)
}

// selectLatest opens the most recently updated conversation, or shows the
// generic welcome when there is none.
func (c *Controller) selectLatest(ctx context.Context, identity model.Identity) error {
	latest, ok := c.registry.MostRecent()
	if !ok {
		c.messages.Reset(false)
		return nil
	}
	return c.messages.LoadForConversation(ctx, identity, latest.ID)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// SelectConversation opens id. An empty id deselects.
func (c *Controller) SelectConversation(ctx context.Context, id string) error {
	identity, err := c.requireIdentity()
	if err != nil {
		return err
	}
	if id == "" {
		c.messages.Reset(c.registry.Len() > 0)
		return nil
	}
	defer c.beginCRUD()()
	return c.messages.LoadForConversation(ctx, identity, id)
}

// NewConversation creates a conversation and opens it.
func (c *Controller) NewConversation(ctx context.Context) (model.ConversationSummary, error) {
	identity, err := c.requireIdentity()
	if err != nil {
		return model.ConversationSummary{}, err
	}
	defer c.beginCRUD()()

	created, err := c.registry.Create(ctx, identity.ID)
	if err != nil {
		return model.ConversationSummary{}, err
	}
	if err := c.messages.LoadForConversation(ctx, identity, created.ID); err != nil {
		return created, err
	}
	return created, nil
}

// RenameConversation sets a conversation title.
func (c *Controller) RenameConversation(ctx context.Context, id, title string) error {
	identity, err := c.requireIdentity()
	if err != nil {
		return err
	}
	defer c.beginCRUD()()
	return c.registry.Rename(ctx, identity.ID, id, title)
}

// DeleteConversation removes a conversation. When it was open, the newest
// remaining one is opened instead. If the server refuses, both the list and
// the selection stay as they were.
func (c *Controller) DeleteConversation(ctx context.Context, id string) error {
	identity, err := c.requireIdentity()
	if err != nil {
		return err
	}
	defer c.beginCRUD()()

	wasSelected := c.messages.ConversationID() == id
	if err := c.registry.Delete(ctx, identity.ID, id); err != nil {
		return err
	}
	if !wasSelected {
		return nil
	}
	return c.selectLatest(ctx, identity)
}

// ClearConversations deletes every conversation of the user.
func (c *Controller) ClearConversations(ctx context.Context) (*api.ClearResult, error) {
	identity, err := c.requireIdentity()
	if err != nil {
		return nil, err
	}
	defer c.beginCRUD()()

	result, err := c.registry.ClearAll(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	c.messages.Reset(false)
	return result, nil
}

// =============================================================================
// SESSION
// =============================================================================

// ChangeAPIURL points the client at a new backend and tests it. The URL is
// persisted even when the server cannot be reached.
func (c *Controller) ChangeAPIURL(ctx context.Context, raw string) error {
	normalized, err := c.session.SetAPIURL(ctx, raw)
	if err != nil {
		return err
	}
	defer c.beginCRUD()()

	c.backend.SetBaseURL(normalized)
	c.monitor.MarkDisconnected(nil)

	conversationID := c.messages.ConversationID()
	c.messages.AppendLocal(model.NewAIMessage(
		fmt.Sprintf("API URL changed to %s. Testing connection...", normalized), conversationID))

	if err := c.monitor.CheckHealth(ctx, 0, c.opts.HealthTimeout); err != nil {
		c.messages.AppendLocal(model.NewErrorMessage(
			fmt.Sprintf("Cannot connect to the server at %s. Please check the URL and try again.", normalized),
			conversationID, ""))
		return err
	}

	if identity, ok := c.session.Identity(); ok {
		if err := c.registry.List(ctx, identity.ID); err != nil {
			c.logger.Warn("failed to reload conversations after URL change", zap.Error(err))
		}
	}
	return nil
}

// Reconnect retries the backend on request. When it answers, the
// conversation list is refreshed.
func (c *Controller) Reconnect(ctx context.Context) error {
	if err := c.monitor.Reconnect(ctx); err != nil {
		return err
	}
	if identity, ok := c.session.Identity(); ok {
		if err := c.registry.List(ctx, identity.ID); err != nil {
			c.logger.Warn("failed to reload conversations after reconnect", zap.Error(err))
		}
	}
	return nil
}

// Logout forgets the signed-in user and empties the session views.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.session.ClearIdentity(ctx); err != nil {
		return err
	}
	c.registry.Reset()
	c.messages.Clear()
	c.setState(StateIdle)
	c.publish(EventAuthRequired)
	return nil
}
