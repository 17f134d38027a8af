// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jeranaias/linuxassist/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClientWithConfig(&ClientConfig{
		BaseURL:        server.URL,
		RequestTimeout: 2 * time.Second,
		AskTimeout:     2 * time.Second,
	})
	return client, server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ana@example.com", req.Email)
		writeJSON(w, 200, map[string]string{"message": "Login successful", "user_id": "u1", "username": "ana"})
	})

	identity, err := client.Login(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, model.Identity{ID: "u1", Username: "ana"}, *identity)
}

func TestLogin_BadCredentials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]string{"detail": "Incorrect email or password"})
	})

	_, err := client.Login(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsAuthRequired(err))
	assert.Equal(t, 401, StatusCode(err))
	assert.Equal(t, "Incorrect email or password", DetailOf(err))
}

func TestRegister_UsesSubmittedUsername(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register", r.URL.Path)
		writeJSON(w, 200, map[string]string{"message": "User registered successfully", "user_id": "u9"})
	})

	identity, err := client.Register(context.Background(), "bo", "bo@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u9", identity.ID)
	assert.Equal(t, "bo", identity.Username)
}

func TestRegister_ValidationDetailArray(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 422, map[string]any{"detail": []map[string]any{
			{"loc": []string{"body", "email"}, "msg": "field required", "type": "value_error.missing"},
		}})
	})

	_, err := client.Register(context.Background(), "bo", "", "pw")
	require.Error(t, err)
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrTypeValidation, ce.Type)
	assert.Equal(t, "field required", ce.Detail)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		writeJSON(w, 200, map[string]string{"status": "healthy", "model_api": "healthy"})
	})

	status, err := client.Health(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.ModelAPI)
}

func TestHealth_NonJSONBodyStillHealthy(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	status, err := client.Health(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Empty(t, status.Status)
}

func TestHealth_Timeout(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := client.Health(context.Background(), 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHealth_ConnectionRefused(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.Health(context.Background(), time.Second)
	require.Error(t, err)
	assert.True(t, IsConnection(err))
	assert.False(t, IsTimeout(err))
	assert.True(t, IsTransport(err))
}

func TestHealth_ServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Health(context.Background(), time.Second)
	require.Error(t, err)
	assert.Equal(t, 503, StatusCode(err))
	assert.Equal(t, "Service Unavailable", StatusTextOf(err))
	assert.False(t, IsTransport(err))
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestListConversations_ParsesNaiveTimestamps(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations/u1", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"id":"c1","title":"Listing files","created_at":"2024-05-01T10:00:00.123456","updated_at":"2024-05-01T11:00:00","message_count":4},
			{"id":"c2","title":"Processes","created_at":"2024-05-02T10:00:00Z","updated_at":"2024-05-02T10:30:00+02:00","message_count":0}
		]`)
	})

	list, err := client.ListConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, 4, list[0].MessageCount)
	assert.Equal(t, time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC), list[0].UpdatedAt)
	assert.Equal(t, time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC), list[1].UpdatedAt)
}

func TestListConversations_MissingIDIsInvalid(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"title":"no id","created_at":null,"updated_at":null,"message_count":1}]`)
	})

	_, err := client.ListConversations(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, IsInvalidResponse(err))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestListConversations_SessionExpired(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, map[string]string{"detail": "User not found"})
	})

	_, err := client.ListConversations(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, IsSessionExpired(err))
	assert.Equal(t, 404, StatusCode(err))
}

func TestCreateConversation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/conversations", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["user_id"])
		assert.NotContains(t, body, "title")
		_, _ = io.WriteString(w, `{"id":"c9","title":"New Conversation","created_at":"2024-05-03T09:00:00","updated_at":"2024-05-03T09:00:00","message_count":0}`)
	})

	summary, err := client.CreateConversation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "c9", summary.ID)
	assert.Equal(t, "New Conversation", summary.Title)
}

func TestRenameConversation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/conversations/c1/u1", r.URL.Path)
		var body renameConversationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Disk usage", body.Title)
		_, _ = io.WriteString(w, `{"id":"c1","title":"Disk usage","created_at":"2024-05-01T10:00:00","updated_at":"2024-05-04T10:00:00"}`)
	})

	update, err := client.RenameConversation(context.Background(), "u1", "c1", "Disk usage")
	require.NoError(t, err)
	assert.Equal(t, "Disk usage", update.Title)
	assert.Equal(t, time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC), update.UpdatedAt)
}

func TestRenameConversation_Forbidden(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 403, map[string]string{"detail": "User not authorized to update this conversation or conversation not found for user"})
	})

	_, err := client.RenameConversation(context.Background(), "u1", "c1", "x")
	require.Error(t, err)
	assert.Equal(t, 403, StatusCode(err))
	assert.Contains(t, DetailOf(err), "not authorized")
}

func TestDeleteConversation(t *testing.T) {
	var gotPath, gotMethod string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		writeJSON(w, 200, map[string]string{"message": "deleted"})
	})

	require.NoError(t, client.DeleteConversation(context.Background(), "u1", "c1"))
	assert.Equal(t, "/conversations/c1/u1", gotPath)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestClearConversations(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u1/conversations/clear", r.URL.Path)
		writeJSON(w, 200, map[string]any{"message": "All conversations cleared successfully", "conversations_deleted": 3, "messages_deleted": 12})
	})

	result, err := client.ClearConversations(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ConversationsDeleted)
	assert.Equal(t, 12, result.MessagesDeleted)
}

func TestConversationMessages_MapsSenders(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations/c1/details/u1", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"c1","title":"t","created_at":"2024-05-01T10:00:00","updated_at":"2024-05-01T10:00:00","messages":[
			{"id":"m1","sender":"user","content":"How do I list files?","timestamp":"2024-05-01T10:00:00"},
			{"id":"m2","sender":"bot","content":"Use ls -la","timestamp":"2024-05-01T10:00:01"}
		]}`)
	})

	msgs, err := client.ConversationMessages(context.Background(), "u1", "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.SenderUser, msgs[0].Sender)
	assert.Equal(t, model.SenderAI, msgs[1].Sender)
	assert.Equal(t, "c1", msgs[1].ConversationID)
}

func TestConversationMessages_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, map[string]string{"detail": "Conversation not found"})
	})

	_, err := client.ConversationMessages(context.Background(), "u1", "c404")
	require.Error(t, err)
	assert.False(t, IsSessionExpired(err))
	assert.Equal(t, "Not Found", StatusTextOf(err))
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "How do I list files?", req["question"])
		assert.Equal(t, "u1", req["user_id"])
		assert.NotContains(t, req, "conversation_id")
		writeJSON(w, 200, map[string]string{"answer": "Use ls -la", "conversation_id": "c7"})
	})

	resp, err := client.Ask(context.Background(), AskRequest{Question: "How do I list files?", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Use ls -la", resp.Answer)
	assert.Equal(t, "c7", resp.ConversationID)
}

func TestAsk_MissingConversationIDIsInvalid(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]string{"answer": "Use ls"})
	})

	_, err := client.Ask(context.Background(), AskRequest{Question: "q", UserID: "u1"})
	require.Error(t, err)
	assert.True(t, IsInvalidResponse(err))
	assert.Equal(t, "invalid response format", DetailOf(err))
}

func TestAsk_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantType   ErrorType
		wantDetail string
	}{
		{"session expired", 404, `{"detail":"User not found"}`, ErrTypeSessionExpired, "User not found"},
		{"conversation missing", 404, `{"detail":"Conversation not found"}`, ErrTypeServer, "Conversation not found"},
		{"server error", 500, `{"detail":"model offline"}`, ErrTypeServer, "model offline"},
		{"plain body", 502, `Bad gateway from proxy`, ErrTypeServer, "Bad gateway from proxy"},
		{"bad request", 400, `{"detail":"Missing required parameters"}`, ErrTypeValidation, "Missing required parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Ask(context.Background(), AskRequest{Question: "q", UserID: "u1"})
			var ce *ClientError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantType, ce.Type)
			assert.Equal(t, tt.status, ce.Status)
			assert.Equal(t, tt.wantDetail, ce.Detail)
		})
	}
}

func TestAsk_EmptyErrorBodyFallsBackToStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	})

	_, err := client.Ask(context.Background(), AskRequest{Question: "q", UserID: "u1"})
	require.Error(t, err)
	assert.Equal(t, "Server responded with status: 500 Internal Server Error", DetailOf(err))
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func TestClient_NoBaseURL(t *testing.T) {
	client := NewClientWithConfig(&ClientConfig{})

	_, err := client.ListConversations(context.Background(), "u1")
	assert.True(t, errors.Is(err, ErrNoBaseURL))
	assert.True(t, IsAuthRequired(err))
}

func TestClient_SetBaseURL(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/health", r.URL.Path)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: "http://127.0.0.1:1"})
	client.SetBaseURL(server.URL + "/")
	assert.Equal(t, server.URL, client.BaseURL())

	_, err := client.Health(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestClient_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, []any{})
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL, TracerProvider: tp})
	_, err := client.ListConversations(context.Background(), "u1")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /conversations/{user_id}", spans[0].Name())
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

func TestTimestamp_Unmarshal(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-05-01T10:00:00.5"`), &ts))
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 500000000, time.UTC), ts.Time)

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
