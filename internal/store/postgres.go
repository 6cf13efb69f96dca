package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/grading"
)

// PostgresStore implements Repository on a pgx connection pool.
type PostgresStore struct {
	pool            *pgxpool.Pool
	startingCredits int
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id           uuid PRIMARY KEY,
		user_id      uuid NOT NULL,
		persona_id   text NOT NULL,
		target_raise text NOT NULL DEFAULT '',
		messages     jsonb NOT NULL DEFAULT '[]'::jsonb,
		status       text NOT NULL DEFAULT 'active',
		outcome      text NOT NULL DEFAULT '',
		grading      jsonb,
		created_at   timestamptz NOT NULL DEFAULT now(),
		updated_at   timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_user_created ON conversations (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS user_credits (
		user_id    uuid PRIMARY KEY,
		credits    integer NOT NULL CHECK (credits >= 0),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
}

// NewPostgres connects, pings and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string, startingCredits int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &PostgresStore{pool: pool, startingCredits: startingCredits}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return s, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, c *Conversation) error {
	prepare(c)
	msgs, err := encodeMessages(c.Messages)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversations (id, user_id, persona_id, target_raise, messages, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.PersonaID, c.TargetRaise, msgs, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

const pgConversationColumns = `id, user_id, persona_id, target_raise, messages, status, outcome, grading, created_at, updated_at`

func scanPgConversation(row pgx.Row) (*Conversation, error) {
	var (
		c               Conversation
		status, outcome string
		msgs, result    []byte
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.PersonaID, &c.TargetRaise, &msgs, &status, &outcome, &result, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = conversation.Status(status)
	c.Outcome = conversation.Outcome(outcome)
	if err := decodeInto(&c, msgs, result); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, userID, id uuid.UUID) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgConversationColumns+`
		FROM conversations
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	c, err := scanPgConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, userID uuid.UUID, limit int) ([]*Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgConversationColumns+`
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, listLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := []*Conversation{}
	for rows.Next() {
		c, err := scanPgConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateMessages(ctx context.Context, userID, id uuid.UUID, msgs []conversation.Message) error {
	b, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET messages = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3 AND status = 'active'`,
		b, id, userID,
	)
	if err != nil {
		return fmt.Errorf("update messages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingReason(ctx, userID, id)
	}
	return nil
}

func (s *PostgresStore) CompleteConversation(ctx context.Context, userID, id uuid.UUID, outcome conversation.Outcome, result grading.Result) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode grading: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET status = 'completed', outcome = $1, grading = $2, updated_at = now()
		WHERE id = $3 AND user_id = $4 AND status = 'active'`,
		string(outcome), b, id, userID,
	)
	if err != nil {
		return fmt.Errorf("complete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingReason(ctx, userID, id)
	}
	return nil
}

// missingReason explains why a guarded update touched no rows.
func (s *PostgresStore) missingReason(ctx context.Context, userID, id uuid.UUID) error {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM conversations WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	return ErrAlreadyCompleted
}

func (s *PostgresStore) ensureLedger(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_credits (user_id, credits) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, s.startingCredits,
	)
	if err != nil {
		return fmt.Errorf("ensure credit row: %w", err)
	}
	return nil
}

func (s *PostgresStore) Credits(ctx context.Context, userID uuid.UUID) (int, error) {
	if err := s.ensureLedger(ctx, userID); err != nil {
		return 0, err
	}
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT credits FROM user_credits WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("get credits: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ConsumeCredit(ctx context.Context, userID uuid.UUID) (int, error) {
	if err := s.ensureLedger(ctx, userID); err != nil {
		return 0, err
	}
	var n int
	err := s.pool.QueryRow(ctx, `
		UPDATE user_credits SET credits = credits - 1, updated_at = now()
		WHERE user_id = $1 AND credits > 0
		RETURNING credits`,
		userID,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoCredits
	}
	if err != nil {
		return 0, fmt.Errorf("consume credit: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) AddCredits(ctx context.Context, userID uuid.UUID, n int) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_credits (user_id, credits) VALUES ($1, $2::integer + $3::integer)
		ON CONFLICT (user_id) DO UPDATE
		SET credits = user_credits.credits + $3, updated_at = now()
		RETURNING credits`,
		userID, s.startingCredits, n,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return total, nil
}
