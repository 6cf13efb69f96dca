// Package store persists negotiation conversations and the per-user credit
// ledger. Postgres (pgx) is used when a DSN is configured, SQLite otherwise.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/grading"
)

var (
	ErrNotFound         = errors.New("conversation not found")
	ErrAlreadyCompleted = errors.New("conversation already completed")
	ErrNoCredits        = errors.New("no negotiation credits remaining")
)

// Conversation is one persisted negotiation.
type Conversation struct {
	ID          uuid.UUID              `json:"id"`
	UserID      uuid.UUID              `json:"userId"`
	PersonaID   string                 `json:"persona"`
	TargetRaise string                 `json:"targetRaise"`
	Messages    []conversation.Message `json:"messages"`
	Status      conversation.Status    `json:"status"`
	Outcome     conversation.Outcome   `json:"outcome,omitempty"`
	Grading     *grading.Result        `json:"grading,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Repository is implemented by PostgresStore and SQLiteStore.
type Repository interface {
	// CreateConversation inserts c, assigning an ID and timestamps when unset.
	CreateConversation(ctx context.Context, c *Conversation) error

	// GetConversation returns ErrNotFound unless id exists and belongs to userID.
	GetConversation(ctx context.Context, userID, id uuid.UUID) (*Conversation, error)

	// ListConversations returns the user's conversations, newest first.
	ListConversations(ctx context.Context, userID uuid.UUID, limit int) ([]*Conversation, error)

	// UpdateMessages replaces the transcript of an active conversation.
	UpdateMessages(ctx context.Context, userID, id uuid.UUID, msgs []conversation.Message) error

	// CompleteConversation records the outcome and grading. Returns
	// ErrAlreadyCompleted if another caller completed it first.
	CompleteConversation(ctx context.Context, userID, id uuid.UUID, outcome conversation.Outcome, result grading.Result) error

	// Credits returns the user's balance, creating the ledger row if needed.
	Credits(ctx context.Context, userID uuid.UUID) (int, error)

	// ConsumeCredit atomically takes one credit and returns what is left,
	// or ErrNoCredits when the balance is zero.
	ConsumeCredit(ctx context.Context, userID uuid.UUID) (int, error)

	// AddCredits adds n credits and returns the new balance.
	AddCredits(ctx context.Context, userID uuid.UUID, n int) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50

func listLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return defaultListLimit
	}
	return limit
}

func prepare(c *Conversation) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = conversation.StatusActive
	}
	if c.Messages == nil {
		c.Messages = []conversation.Message{}
	}
}

func encodeMessages(msgs []conversation.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return b, nil
}

func decodeInto(c *Conversation, messages, result []byte) error {
	if err := json.Unmarshal(messages, &c.Messages); err != nil {
		return fmt.Errorf("decode messages: %w", err)
	}
	if len(result) > 0 {
		var r grading.Result
		if err := json.Unmarshal(result, &r); err != nil {
			return fmt.Errorf("decode grading: %w", err)
		}
		c.Grading = &r
	}
	return nil
}

var (
	_ Repository = (*PostgresStore)(nil)
	_ Repository = (*SQLiteStore)(nil)
)

// Open picks Postgres when databaseURL is set and SQLite at sqlitePath
// otherwise.
func Open(ctx context.Context, databaseURL, sqlitePath string, startingCredits int) (Repository, error) {
	if databaseURL != "" {
		return NewPostgres(ctx, databaseURL, startingCredits)
	}
	return NewSQLite(sqlitePath, startingCredits)
}
