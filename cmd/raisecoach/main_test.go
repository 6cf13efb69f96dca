package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/raisecoach/internal/auth"
	"github.com/MikeSquared-Agency/raisecoach/internal/config"
	"github.com/MikeSquared-Agency/raisecoach/internal/gateway"
	"github.com/MikeSquared-Agency/raisecoach/internal/persona"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCmd(t *testing.T) {
	out, err := run(t, "classify", "I", "was", "wondering", "if", "maybe", "I", "could", "get", "a", "small", "raise")
	require.NoError(t, err)

	var body struct {
		CoachingTip *struct {
			Tactic string `json:"tactic"`
		} `json:"coachingTip"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.NotNil(t, body.CoachingTip)
	assert.Equal(t, "Be Specific", body.CoachingTip.Tactic)
}

func TestClassifyCmd_NoMatch(t *testing.T) {
	out, err := run(t, "classify", "Hello")
	require.NoError(t, err)
	assert.Contains(t, out, `"coachingTip": null`)
}

func TestPromptCmd(t *testing.T) {
	out, err := run(t, "prompt", "gaslighter", "15%")
	require.NoError(t, err)
	want, err := persona.NegotiationPrompt(persona.Gaslighter, "15%")
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)

	out, err = run(t, "prompt", "--feedback", "gaslighter", "15%")
	require.NoError(t, err)
	assert.Equal(t, persona.FeedbackPrompt()+"\n", out)

	out, err = run(t, "prompt", "--voice", "data-driven", "15%")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "voice: echo\n"))

	_, err = run(t, "prompt", "the-intern", "15%")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-test-secret-that-is-long-enough")
	t.Setenv("AUTH_AUDIENCE", "")
	user := uuid.New()

	out, err := run(t, "token", user.String())
	require.NoError(t, err)

	got, err := auth.NewVerifier("cli-test-secret-that-is-long-enough", "authenticated").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestNewCompleter(t *testing.T) {
	cfg := config.Config{LLMProvider: config.ProviderGateway, GatewayModel: "m"}
	c, ok := newCompleter(cfg).(*gateway.Client)
	require.True(t, ok)
	assert.Equal(t, "m", c.Model())

	cfg.LLMProvider = config.ProviderAnthropic
	_, ok = newCompleter(cfg).(*gateway.Client)
	assert.False(t, ok)
}
