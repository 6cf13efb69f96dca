package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

func completionBody(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	}
}

func TestComplete_Success(t *testing.T) {
	var got capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), "path %q", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody("world"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "test-model", 5*time.Second)
	out, err := c.Complete(context.Background(), Request{
		System:      "you are a test",
		Messages:    []Message{{Role: RoleUser, Content: "hello"}, {Role: RoleAssistant, Content: "hi"}},
		MaxTokens:   500,
		Temperature: 0.8,
	})
	require.NoError(t, err)
	assert.Equal(t, "world", out)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 500, got.MaxTokens)
	assert.InDelta(t, 0.8, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, Message{Role: "system", Content: "you are a test"}, got.Messages[0])
	assert.Equal(t, Message{Role: "user", Content: "hello"}, got.Messages[1])
	assert.Equal(t, Message{Role: "assistant", Content: "hi"}, got.Messages[2])
}

func TestComplete_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusPaymentRequired, ErrQuotaExhausted},
		{http.StatusBadRequest, ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "nope", "type": "test"},
				})
			}))
			defer server.Close()

			c := NewClient(server.URL, "test-key", "test-model", 5*time.Second)
			_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, int32(1), calls.Load(), "gateway must be called exactly once")
		})
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody(""))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "test-model", 5*time.Second)
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestStatusErrorAndKind(t *testing.T) {
	assert.Equal(t, "rate_limited", Kind(StatusError(429, "")))
	assert.Equal(t, "quota_exhausted", Kind(StatusError(402, "billing")))
	assert.Equal(t, "upstream", Kind(StatusError(500, "")))
	assert.Equal(t, "no_content", Kind(ErrNoContent))
	assert.Equal(t, "", Kind(nil))
	assert.Contains(t, StatusError(503, "down").Error(), "status 503: down")
}
