// Package anthropic is a gateway.Completer backed by the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/raisecoach/internal/gateway"
)

const defaultAPIURL = "https://api.anthropic.com/v1/messages"

type Client struct {
	apiKey string
	model  string
	apiURL string
	client *http.Client
}

func NewClient(apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		apiURL: defaultAPIURL,
		client: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL points the client at a different messages endpoint.
func (c *Client) SetBaseURL(url string) {
	c.apiURL = url
}

type request struct {
	Model       string            `json:"model"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
	System      string            `json:"system,omitempty"`
	Messages    []gateway.Message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a message to the Anthropic API and returns the text response.
func (c *Client) Complete(ctx context.Context, req gateway.Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	reqBody := request{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    req.Messages,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: api call: %v", gateway.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", gateway.ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Type != "" {
			return "", gateway.StatusError(resp.StatusCode, errResp.Error.Type+": "+errResp.Error.Message)
		}
		return "", gateway.StatusError(resp.StatusCode, string(respBody))
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %v", gateway.ErrUpstream, err)
	}

	if len(apiResp.Content) == 0 || apiResp.Content[0].Text == "" {
		return "", gateway.ErrNoContent
	}

	return apiResp.Content[0].Text, nil
}
