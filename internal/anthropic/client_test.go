package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/raisecoach/internal/gateway"
)

var _ gateway.Completer = (*Client)(nil)

func newTestClient(url string) *Client {
	c := NewClient("test-key", "test-model", 5*time.Second)
	c.SetBaseURL(url)
	return c
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key test-key, got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("expected anthropic-version 2023-06-01, got %q", r.Header.Get("anthropic-version"))
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %q", req.Model)
		}
		if req.System != "you are a test" {
			t.Errorf("expected system prompt, got %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.MaxTokens != 100 {
			t.Errorf("expected max_tokens 100, got %d", req.MaxTokens)
		}
		if req.Temperature != 0.3 {
			t.Errorf("expected temperature 0.3, got %v", req.Temperature)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": "world"}},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Complete(context.Background(), gateway.Request{
		System:      "you are a test",
		Messages:    []gateway.Message{{Role: gateway.RoleUser, Content: "hello"}},
		MaxTokens:   100,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "world" {
		t.Errorf("expected 'world', got %q", result)
	}
}

func TestComplete_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "rate_limit_error", "message": "slow down"},
		})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), gateway.Request{
		Messages: []gateway.Message{{Role: gateway.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, gateway.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"type":    "invalid_request_error",
				"message": "max_tokens is too large",
			},
		})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), gateway.Request{
		Messages: []gateway.Message{{Role: gateway.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, gateway.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"content": nil, "stop_reason": "end_turn"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), gateway.Request{
		Messages: []gateway.Message{{Role: gateway.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, gateway.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}
