// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/linuxassist/internal/api"
	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/transcript"
)

const (
	askFailurePrefix  = "Failed to get response from server: "
	askTimeoutText    = "Request timed out. The server might be busy or unavailable. Try again in a moment."
	askInvalidText    = "Invalid response format from server"
	askSessionExpired = "User session expired. Please log in again."
)

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitQuestion sends text to the assistant. The question is shown
// immediately; the answer or an error entry follows. Errors are returned
// after the transcript has been updated. When another conversation was
// selected while waiting, the answer stays on the server and only the
// conversation list is refreshed.
func (c *Controller) SubmitQuestion(ctx context.Context, text string) error {
	question, identity, err := c.beginSubmit(text)
	if err != nil {
		return err
	}

	owner := c.messages.Owner()
	conversationID := owner.ConversationID
	c.messages.AppendFor(owner, model.NewUserMessage(question, conversationID))

	resp, err := c.backend.Ask(ctx, api.AskRequest{
		Question:       question,
		UserID:         identity.ID,
		ConversationID: conversationID,
	})
	if err != nil {
		err = c.askFailed(ctx, err, question, &owner)
		c.setState(StateErrorShown)
		return err
	}

	c.messages.AppendFor(owner, model.NewAIMessage(resp.Answer, resp.ConversationID))
	c.answered(identity, owner, resp.ConversationID)
	c.setState(StateIdle)
	return nil
}

// HandleRetryMessage resends the question of a failed entry. The server
// starts a fresh conversation for it; on success the error entry is
// replaced in place, on failure it stays as it is.
func (c *Controller) HandleRetryMessage(ctx context.Context, originalQuestion string) error {
	question, identity, err := c.beginSubmit(originalQuestion)
	if err != nil {
		return err
	}
	owner := c.messages.Owner()

	resp, err := c.backend.Ask(ctx, api.AskRequest{
		Question: question,
		UserID:   identity.ID,
	})
	if err != nil {
		c.logger.Warn("retry failed", zap.String("question", question), zap.Error(err))
		err = c.askFailed(ctx, err, question, nil)
		c.setState(StateErrorShown)
		return err
	}

	c.messages.ReplaceErrorFor(owner, originalQuestion, model.NewAIMessage(resp.Answer, resp.ConversationID))
	c.answered(identity, owner, resp.ConversationID)
	c.setState(StateIdle)
	return nil
}

// beginSubmit checks the submit preconditions and enters StateSubmitting.
func (c *Controller) beginSubmit(text string) (string, model.Identity, error) {
	question := norm.NFC.String(strings.TrimSpace(text))
	if question == "" {
		return "", model.Identity{}, ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return "", model.Identity{}, ErrBusy
	}
	identity, ok := c.session.Identity()
	if !ok {
		c.mu.Unlock()
		c.publish(EventAuthRequired)
		return "", model.Identity{}, ErrUnauthenticated
	}
	c.state = StateSubmitting
	c.mu.Unlock()

	c.publish(EventStateChanged)
	return question, identity, nil
}

// answered applies the bookkeeping shared by every successful ask. The
// transcript adopts conversationID only if it still shows what the ask
// started from.
func (c *Controller) answered(identity model.Identity, owner transcript.Owner, conversationID string) {
	if !c.messages.AdoptFor(owner, conversationID) {
		c.logger.Debug("selection changed while answering", zap.String("conversation_id", conversationID))
	}
	c.monitor.MarkConnected()
	c.resync(identity.ID)
}

// askFailed classifies an ask error. With an owner the matching error
// entry is added to that transcript.
func (c *Controller) askFailed(ctx context.Context, err error, question string, owner *transcript.Owner) error {
	appendErr := func(text, retry string) {
		if owner != nil {
			c.messages.AppendFor(*owner, model.NewErrorMessage(askFailurePrefix+text, owner.ConversationID, retry))
		}
	}

	switch {
	case api.IsSessionExpired(err):
		if clearErr := c.session.ClearIdentity(ctx); clearErr != nil {
			c.logger.Warn("failed to clear expired identity", zap.Error(clearErr))
		}
		c.registry.Reset()
		appendErr(askSessionExpired, "")
		c.publish(EventAuthRequired)
		return ErrSessionExpired

	case api.IsInvalidResponse(err):
		appendErr(askInvalidText, "")
		return err

	case api.IsTimeout(err):
		c.monitor.MarkDisconnected(err)
		appendErr(askTimeoutText, question)
		return err

	case api.StatusCode(err) != 0:
		appendErr(api.DetailOf(err), question)
		return err

	default:
		c.monitor.MarkDisconnected(err)
		appendErr(api.DetailOf(err), question)
		return err
	}
}
