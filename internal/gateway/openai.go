package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	client openai.Client
	model  string
}

// NewClient builds a gateway client. baseURL may be empty for api.openai.com.
// SDK retries are disabled: callers decide whether to retry.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete sends the prompt and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", StatusError(apiErr.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrNoContent
	}
	return resp.Choices[0].Message.Content, nil
}
