// Package negotiation runs stored negotiations end to end: spending a credit
// to start one, playing boss turns through the chat orchestrator, and grading
// the finished transcript.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/raisecoach/internal/chat"
	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/grading"
	"github.com/MikeSquared-Agency/raisecoach/internal/hermes"
	"github.com/MikeSquared-Agency/raisecoach/internal/persona"
	"github.com/MikeSquared-Agency/raisecoach/internal/store"
)

var ErrInvalidInput = errors.New("invalid input")

// Service orchestrates stored negotiations.
type Service struct {
	repo            store.Repository
	chat            *chat.Orchestrator
	grader          *grading.Grader
	events          hermes.Publisher
	purchaseCredits int
	logger          *slog.Logger

	mu       sync.Mutex
	checkout map[string]struct{} // checkout session ids already granted
}

func New(repo store.Repository, orch *chat.Orchestrator, grader *grading.Grader, events hermes.Publisher, purchaseCredits int, logger *slog.Logger) *Service {
	if events == nil {
		events = hermes.Nop{}
	}
	return &Service{
		repo:            repo,
		chat:            orch,
		grader:          grader,
		events:          events,
		purchaseCredits: purchaseCredits,
		logger:          logger,
		checkout:        make(map[string]struct{}),
	}
}

// Started is returned by Start.
type Started struct {
	Conversation     *store.Conversation `json:"conversation"`
	SystemPrompt     string              `json:"systemPrompt"`
	CreditsRemaining int                 `json:"creditsRemaining"`
}

// Start spends one credit and opens a conversation whose first entry is the
// persona's greeting.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, personaID, targetRaise string) (Started, error) {
	id, err := persona.Parse(personaID)
	if err != nil {
		return Started{}, err
	}
	targetRaise = strings.TrimSpace(targetRaise)
	if targetRaise == "" {
		return Started{}, fmt.Errorf("%w: target raise is required", ErrInvalidInput)
	}
	desc, err := persona.Lookup(id)
	if err != nil {
		return Started{}, err
	}
	prompt, err := persona.NegotiationPrompt(id, targetRaise)
	if err != nil {
		return Started{}, err
	}

	remaining, err := s.repo.ConsumeCredit(ctx, userID)
	if err != nil {
		return Started{}, err
	}

	c := &store.Conversation{
		UserID:      userID,
		PersonaID:   string(id),
		TargetRaise: targetRaise,
		Messages:    []conversation.Message{{Role: conversation.RoleBoss, Content: desc.Greeting}},
		Status:      conversation.StatusActive,
	}
	if err := s.repo.CreateConversation(ctx, c); err != nil {
		if _, refundErr := s.repo.AddCredits(ctx, userID, 1); refundErr != nil {
			s.logger.Error("credit refund failed", "user_id", userID, "error", refundErr)
		}
		return Started{}, fmt.Errorf("create conversation: %w", err)
	}

	s.logger.Info("negotiation started",
		"conversation_id", c.ID,
		"user_id", userID,
		"persona", id,
		"credits_remaining", remaining,
	)
	s.publish(hermes.SubjectConversationStarted, hermes.ConversationStarted{
		ConversationID: c.ID.String(),
		UserID:         userID.String(),
		Persona:        string(id),
		TargetRaise:    targetRaise,
		StartedAt:      c.CreatedAt,
	})

	return Started{Conversation: c, SystemPrompt: prompt, CreditsRemaining: remaining}, nil
}

// TurnResult is the outcome of one employee turn.
type TurnResult struct {
	Reply        chat.Reply          `json:"reply"`
	Conversation *store.Conversation `json:"conversation,omitempty"`
}

// Turn appends the employee's message and the boss's reply. When the gateway
// fails nothing is persisted; the coaching tip is still returned.
func (s *Service) Turn(ctx context.Context, userID, conversationID uuid.UUID, content string) (TurnResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return TurnResult{}, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}

	c, err := s.repo.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return TurnResult{}, err
	}
	if c.Status == conversation.StatusCompleted {
		return TurnResult{}, store.ErrAlreadyCompleted
	}
	prompt, err := persona.NegotiationPrompt(persona.ID(c.PersonaID), c.TargetRaise)
	if err != nil {
		return TurnResult{}, err
	}

	transcript := make([]conversation.Message, 0, len(c.Messages)+2)
	transcript = append(transcript, c.Messages...)
	transcript = append(transcript, conversation.Message{Role: conversation.RoleUser, Content: content})

	reply, err := s.chat.Reply(ctx, transcript, prompt)
	if err != nil {
		return TurnResult{Reply: reply}, err
	}

	transcript = append(transcript, conversation.Message{Role: conversation.RoleBoss, Content: reply.Content})
	if err := s.repo.UpdateMessages(ctx, userID, conversationID, transcript); err != nil {
		return TurnResult{Reply: reply}, err
	}
	c.Messages = transcript
	return TurnResult{Reply: reply, Conversation: c}, nil
}

// Complete grades the conversation and closes it. Completing an already
// graded conversation returns the stored grading.
func (s *Service) Complete(ctx context.Context, userID, conversationID uuid.UUID, outcome conversation.Outcome) (*store.Conversation, error) {
	if _, err := conversation.ParseOutcome(string(outcome)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	c, err := s.repo.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if c.Status == conversation.StatusCompleted {
		return c, nil
	}

	name := c.PersonaID
	if desc, err := persona.Lookup(persona.ID(c.PersonaID)); err == nil {
		name = desc.Name
	}

	result, err := s.grader.Grade(ctx, c.Messages, name, outcome)
	if err != nil {
		return nil, err
	}

	err = s.repo.CompleteConversation(ctx, userID, conversationID, outcome, result)
	if errors.Is(err, store.ErrAlreadyCompleted) {
		return s.repo.GetConversation(ctx, userID, conversationID)
	}
	if err != nil {
		return nil, err
	}

	c.Status = conversation.StatusCompleted
	c.Outcome = outcome
	c.Grading = &result

	s.publish(hermes.SubjectConversationGraded, hermes.ConversationGraded{
		ConversationID:      c.ID.String(),
		UserID:              userID.String(),
		Persona:             c.PersonaID,
		Outcome:             string(outcome),
		LikelihoodOfSuccess: result.LikelihoodOfSuccess,
		GradedAt:            time.Now().UTC(),
	})
	return c, nil
}

// History lists the user's conversations, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]*store.Conversation, error) {
	return s.repo.ListConversations(ctx, userID, limit)
}

func (s *Service) Get(ctx context.Context, userID, conversationID uuid.UUID) (*store.Conversation, error) {
	return s.repo.GetConversation(ctx, userID, conversationID)
}

func (s *Service) Credits(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.Credits(ctx, userID)
}

// GrantPurchase adds one purchased credit pack and returns the new balance.
func (s *Service) GrantPurchase(ctx context.Context, userID uuid.UUID) (int, error) {
	balance, err := s.repo.AddCredits(ctx, userID, s.purchaseCredits)
	if err != nil {
		return 0, err
	}
	s.logger.Info("credits granted", "user_id", userID, "added", s.purchaseCredits, "balance", balance)
	s.publish(hermes.SubjectCreditsGranted, hermes.CreditsGranted{
		UserID:  userID.String(),
		Added:   s.purchaseCredits,
		Balance: balance,
		Reason:  "purchase",
	})
	return balance, nil
}

// HandleCheckoutCompleted is the NATS handler for payments.checkout.completed.
// Redelivered checkout sessions are granted once per process.
func (s *Service) HandleCheckoutCompleted(subject string, data []byte) {
	ev, userID, err := hermes.DecodeCheckout(data)
	if err != nil {
		s.logger.Warn("ignoring checkout event", "subject", subject, "error", err)
		return
	}

	if ev.SessionID != "" {
		s.mu.Lock()
		_, seen := s.checkout[ev.SessionID]
		s.checkout[ev.SessionID] = struct{}{}
		s.mu.Unlock()
		if seen {
			s.logger.Info("duplicate checkout event", "session_id", ev.SessionID)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.GrantPurchase(ctx, userID); err != nil {
		s.logger.Error("checkout grant failed", "session_id", ev.SessionID, "user_id", userID, "error", err)
		if ev.SessionID != "" {
			s.mu.Lock()
			delete(s.checkout, ev.SessionID)
			s.mu.Unlock()
		}
	}
}

func (s *Service) publish(subject string, data any) {
	if err := s.events.Publish(subject, data); err != nil {
		s.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}
