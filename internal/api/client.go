// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jeranaias/linuxassist/internal/model"
	"github.com/jeranaias/linuxassist/internal/util"
)

// maxResponseBytes bounds how much of any response body is read.
const maxResponseBytes = 4 << 20

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://localhost:8000).
	BaseURL string

	// RequestTimeout bounds conversation CRUD and history calls (default: 10s).
	RequestTimeout time.Duration

	// AskTimeout bounds /ask (default: 30s).
	AskTimeout time.Duration

	// HTTPClient overrides the transport. Timeouts are applied through the
	// request context, so the client's own Timeout should stay zero.
	HTTPClient *http.Client

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://localhost:8000",
		RequestTimeout: 10 * time.Second,
		AskTimeout:     30 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Linux assistant backend. It is safe for concurrent
// use; the base URL can be swapped at any time and applies to the next
// request.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	config     ClientConfig
	httpClient *http.Client
	validate   *validator.Validate
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewClient creates a client with the default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client, filling zero values with defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	defaults := DefaultConfig()
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = defaults.AskTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		httpClient: cfg.HTTPClient,
		validate:   validator.New(),
		tracer:     cfg.TracerProvider.Tracer("github.com/jeranaias/linuxassist/internal/api"),
		logger:     cfg.Logger.Named("api"),
	}
}

// BaseURL returns the backend URL requests are sent to.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points the client at another backend.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Login exchanges credentials for an identity.
func (c *Client) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/login", "/login", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &model.Identity{ID: resp.UserID, Username: resp.Username}, nil
}

// Register creates an account. The backend does not echo the username, so
// the identity carries the one that was submitted.
func (c *Client) Register(ctx context.Context, username, email, password string) (*model.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var resp registerResponse
	req := RegisterRequest{Username: username, Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/register", "/register", req, &resp); err != nil {
		return nil, err
	}
	return &model.Identity{ID: resp.UserID, Username: username}, nil
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Health performs a single GET /health bounded by timeout. Any 2xx counts
// as healthy; the body is parsed leniently.
func (c *Client) Health(ctx context.Context, timeout time.Duration) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := c.roundTrip(ctx, http.MethodGet, "/health", "/health", nil)
	if err != nil {
		return nil, err
	}
	status := &HealthStatus{}
	if gjson.ValidBytes(body) {
		status.Status = gjson.GetBytes(body, "status").String()
		status.ModelAPI = gjson.GetBytes(body, "model_api").String()
	}
	return status, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns every conversation of userID in server order.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var dtos []conversationDTO
	path := "/conversations/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, "/conversations/{user_id}", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]model.ConversationSummary, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toModel())
	}
	return out, nil
}

// CreateConversation creates an empty conversation. The backend titles it.
func (c *Client) CreateConversation(ctx context.Context, userID string) (*model.ConversationSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var dto conversationDTO
	if err := c.do(ctx, http.MethodPost, "/conversations", "/conversations", createConversationRequest{UserID: userID}, &dto); err != nil {
		return nil, err
	}
	summary := dto.toModel()
	return &summary, nil
}

// RenameConversation sets a conversation title.
func (c *Client) RenameConversation(ctx context.Context, userID, conversationID, title string) (*ConversationUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var dto conversationDTO
	path := "/conversations/" + url.PathEscape(conversationID) + "/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodPut, path, "/conversations/{id}/{user_id}", renameConversationRequest{Title: title}, &dto); err != nil {
		return nil, err
	}
	return &ConversationUpdate{
		ID:        dto.ID,
		Title:     dto.Title,
		CreatedAt: dto.CreatedAt.Time,
		UpdatedAt: dto.UpdatedAt.Time,
	}, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	path := "/conversations/" + url.PathEscape(conversationID) + "/" + url.PathEscape(userID)
	_, err := c.roundTrip(ctx, http.MethodDelete, path, "/conversations/{id}/{user_id}", nil)
	return err
}

// ClearConversations removes every conversation of userID.
func (c *Client) ClearConversations(ctx context.Context, userID string) (*ClearResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	path := "/users/" + url.PathEscape(userID) + "/conversations/clear"
	body, err := c.roundTrip(ctx, http.MethodDelete, path, "/users/{user_id}/conversations/clear", nil)
	if err != nil {
		return nil, err
	}
	result := &ClearResult{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			c.logger.Debug("unparsed clear response", zap.Error(err))
		}
	}
	return result, nil
}

// ConversationMessages returns the messages of a conversation in order.
func (c *Client) ConversationMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var dto conversationDetailDTO
	path := "/conversations/" + url.PathEscape(conversationID) + "/details/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, "/conversations/{id}/details/{user_id}", nil, &dto); err != nil {
		return nil, err
	}
	msgs := make([]model.Message, 0, len(dto.Messages))
	for _, m := range dto.Messages {
		msgs = append(msgs, model.Message{
			ID:             m.ID,
			Sender:         model.ParseSender(m.Sender),
			Content:        m.Content,
			Timestamp:      m.Timestamp.Time,
			ConversationID: conversationID,
		})
	}
	return msgs, nil
}

// =============================================================================
// ASK
// =============================================================================

// Ask submits a question. The answer must carry both the answer text and
// the conversation id; anything less is ErrTypeInvalidResponse.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.AskTimeout)
	defer cancel()

	var resp AskResponse
	if err := c.do(ctx, http.MethodPost, "/ask", "/ask", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do runs a request and decodes plus validates the JSON response into out.
func (c *Client) do(ctx context.Context, method, path, route string, in, out any) error {
	body, err := c.roundTrip(ctx, method, path, route, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: ErrInvalidResponse.Message, Cause: err}
	}
	if err := c.validatePayload(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: ErrInvalidResponse.Message, Cause: err}
	}
	return nil
}

func (c *Client) validatePayload(out any) error {
	if list, ok := out.(*[]conversationDTO); ok {
		for i := range *list {
			if err := c.validate.Struct((*list)[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return c.validate.Struct(out)
}

// roundTrip sends the request and returns the body of a 2xx response.
// Non-2xx responses become classified *ClientError values.
func (c *Client) roundTrip(ctx context.Context, method, path, route string, in any) ([]byte, error) {
	base := c.BaseURL()
	if base == "" {
		return nil, ErrNoBaseURL
	}

	ctx, span := c.tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
			attribute.String("server.address", base),
		),
	)
	defer span.End()

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reqBody)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		cerr := classifyTransportError(ctx, err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, cerr.Type.String())
		c.logger.Debug("request failed",
			zap.String("method", method), zap.String("route", route),
			zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, cerr
	}
	defer drainAndClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		cerr := classifyTransportError(ctx, err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, cerr.Type.String())
		return nil, cerr
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("request completed",
		zap.String("method", method), zap.String("route", route),
		zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cerr := classifyStatus(resp, body)
		span.SetStatus(codes.Error, cerr.Type.String())
		return nil, cerr
	}
	return body, nil
}

func classifyTransportError(ctx context.Context, err error) *ClientError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: context.DeadlineExceeded}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	case errors.Is(err, context.Canceled):
		return &ClientError{Type: ErrTypeConnection, Message: "request canceled", Cause: context.Canceled}
	default:
		return &ClientError{Type: ErrTypeConnection, Message: "cannot reach server", Cause: err}
	}
}

func classifyStatus(resp *http.Response, body []byte) *ClientError {
	detail := extractDetail(body)
	statusText := http.StatusText(resp.StatusCode)
	if statusText == "" {
		statusText = strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	}

	cerr := &ClientError{
		Type:       ErrTypeServer,
		Status:     resp.StatusCode,
		StatusText: statusText,
		Detail:     detail,
		Message:    detail,
	}
	if cerr.Message == "" {
		cerr.Message = "Server responded with status: " + resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && detail == sessionExpiredDetail:
		cerr.Type = ErrTypeSessionExpired
		cerr.Message = ErrSessionExpired.Message
	case resp.StatusCode == http.StatusUnauthorized:
		cerr.Type = ErrTypeAuthRequired
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		cerr.Type = ErrTypeValidation
	}
	return cerr
}

// extractDetail pulls the human-readable reason out of an error body:
// a string "detail", the first message of a validation "detail" array, a
// "message" field, or failing all that the first 100 bytes of the body.
func extractDetail(body []byte) string {
	if gjson.ValidBytes(body) {
		detail := gjson.GetBytes(body, "detail")
		switch {
		case detail.Type == gjson.String:
			return detail.String()
		case detail.IsArray():
			if msg := detail.Get("0.msg"); msg.Exists() {
				return msg.String()
			}
		case detail.Exists():
			return detail.Raw
		}
		if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String {
			return msg.String()
		}
	}
	return strings.TrimSpace(util.TruncateBytes(string(body), 100))
}

// drainAndClose lets the transport reuse the connection.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBytes))
	body.Close()
}
