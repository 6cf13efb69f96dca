// Package gateway is the boundary to the remote chat-completion service.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited means the upstream returned 429; retry later.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrQuotaExhausted means the upstream returned 402; credits must be topped up.
	ErrQuotaExhausted = errors.New("ai credits depleted")
	// ErrNoContent means the upstream answered without a completion body.
	ErrNoContent = errors.New("no response from ai")
	// ErrUpstream covers every other non-success response.
	ErrUpstream = errors.New("ai gateway error")
)

// Gateway roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one gateway chat message. The system prompt travels separately.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completer turns a prompt into text. Implementations make exactly one
// upstream call per invocation.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError maps a non-2xx upstream status onto the sentinel errors above.
func StatusError(status int, detail string) error {
	var kind error
	switch status {
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	case http.StatusPaymentRequired:
		kind = ErrQuotaExhausted
	default:
		kind = ErrUpstream
	}
	if detail == "" {
		return fmt.Errorf("%w: status %d", kind, status)
	}
	return fmt.Errorf("%w: status %d: %s", kind, status, detail)
}

// Kind returns a short label for err, used for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, ErrNoContent):
		return "no_content"
	default:
		return "upstream"
	}
}
