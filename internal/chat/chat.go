// Package chat runs one roleplay turn: it classifies the employee's latest
// message and asks the gateway for the boss's reply.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MikeSquared-Agency/raisecoach/internal/coaching"
	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/gateway"
	"github.com/MikeSquared-Agency/raisecoach/internal/persona"
	"github.com/MikeSquared-Agency/raisecoach/internal/telemetry"
)

const (
	replyMaxTokens   = 500
	replyTemperature = 0.8
)

// Reply is the boss's answer plus the tip for the turn that triggered it.
type Reply struct {
	Content     string        `json:"content"`
	CoachingTip *coaching.Tip `json:"coachingTip"`
}

type Orchestrator struct {
	llm      gateway.Completer
	logger   *slog.Logger
	tips     metric.Int64Counter
	failures metric.Int64Counter
}

func New(llm gateway.Completer, logger *slog.Logger) *Orchestrator {
	meter := telemetry.Meter("raisecoach/chat")
	return &Orchestrator{
		llm:      llm,
		logger:   logger,
		tips:     telemetry.Counter(meter, "raisecoach.coaching_tips", "Coaching tips emitted, by tactic"),
		failures: telemetry.Counter(meter, "raisecoach.gateway_failures", "Failed gateway calls, by kind"),
	}
}

// Reply classifies the last user message, then makes exactly one gateway
// call. The tip is returned even when the call fails.
func (o *Orchestrator) Reply(ctx context.Context, transcript []conversation.Message, systemPrompt string) (Reply, error) {
	var out Reply
	if last, ok := conversation.LastUserMessage(transcript); ok {
		out.CoachingTip = coaching.Classify(last.Content)
	}
	if out.CoachingTip != nil {
		o.tips.Add(ctx, 1, metric.WithAttributes(attribute.String("tactic", out.CoachingTip.Tactic)))
	}

	messages := ToGateway(transcript)
	o.logger.Info("negotiation chat request",
		"message_count", len(messages),
		"has_coaching_tip", out.CoachingTip != nil,
	)

	content, err := o.complete(ctx, systemPrompt, messages)
	if err != nil {
		return out, err
	}
	out.Content = content
	return out, nil
}

// Feedback asks the model to drop the persona and coach the employee in
// prose over the transcript so far. No tip is produced.
func (o *Orchestrator) Feedback(ctx context.Context, transcript []conversation.Message, systemPrompt string) (Reply, error) {
	messages := append(ToGateway(transcript), gateway.Message{
		Role:    gateway.RoleUser,
		Content: persona.FeedbackPrompt(),
	})
	o.logger.Info("negotiation feedback request", "message_count", len(messages))

	content, err := o.complete(ctx, systemPrompt, messages)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Content: content}, nil
}

func (o *Orchestrator) complete(ctx context.Context, systemPrompt string, messages []gateway.Message) (string, error) {
	content, err := o.llm.Complete(ctx, gateway.Request{
		System:      systemPrompt,
		Messages:    messages,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		kind := gateway.Kind(err)
		o.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		o.logger.Error("ai gateway error", "kind", kind, "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return content, nil
}

// ToGateway drops system markers and maps boss turns onto the assistant role.
func ToGateway(transcript []conversation.Message) []gateway.Message {
	out := make([]gateway.Message, 0, len(transcript))
	for _, m := range conversation.WithoutSystem(transcript) {
		role := gateway.RoleUser
		if m.Role == conversation.RoleBoss {
			role = gateway.RoleAssistant
		}
		out = append(out, gateway.Message{Role: role, Content: m.Content})
	}
	return out
}
