// Package realtime mints ephemeral voice sessions on the provider's realtime
// API. Audio itself flows browser to provider; this service only hands out
// the short-lived client secret.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MikeSquared-Agency/raisecoach/internal/gateway"
	"github.com/MikeSquared-Agency/raisecoach/internal/persona"
)

var ErrNotConfigured = errors.New("OPENAI_API_KEY is not set")

const sessionsPath = "realtime/sessions"

type sessionRequest struct {
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions"`
}

// Minter creates realtime sessions. The zero API key yields ErrNotConfigured
// from every call.
type Minter struct {
	client     openai.Client
	configured bool
	model      string
	logger     *slog.Logger
}

func NewMinter(apiKey, baseURL, model string, timeout time.Duration, logger *slog.Logger) *Minter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Minter{
		client:     openai.NewClient(opts...),
		configured: apiKey != "",
		model:      model,
		logger:     logger,
	}
}

// Mint returns the provider's session object verbatim.
func (m *Minter) Mint(ctx context.Context, personaID, targetAmount string) (json.RawMessage, error) {
	if !m.configured {
		return nil, ErrNotConfigured
	}

	instructions, voice := persona.VoicePrompt(persona.ID(personaID), targetAmount)
	m.logger.Info("creating realtime session", "persona", personaID, "voice", voice)

	body, err := json.Marshal(sessionRequest{
		Model:        m.model,
		Voice:        voice,
		Instructions: instructions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	var session json.RawMessage
	err = m.client.Post(ctx, sessionsPath, nil, &session, option.WithRequestBody("application/json", body))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			m.logger.Error("realtime session error", "status", apiErr.StatusCode, "error", apiErr.Message)
			return nil, gateway.StatusError(apiErr.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: realtime session: %v", gateway.ErrUpstream, err)
	}
	if len(session) == 0 {
		return nil, gateway.ErrNoContent
	}
	return session, nil
}
