package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/grading"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db              *sql.DB
	startingCredits int
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string, startingCredits int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer keeps credit updates free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, startingCredits: startingCredits}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		persona_id TEXT NOT NULL,
		target_raise TEXT NOT NULL DEFAULT '',
		messages_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'active',
		outcome TEXT NOT NULL DEFAULT '',
		grading_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user_created ON conversations(user_id, created_at);

	CREATE TABLE IF NOT EXISTS user_credits (
		user_id TEXT PRIMARY KEY,
		credits INTEGER NOT NULL CHECK (credits >= 0),
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	prepare(c)
	msgs, err := encodeMessages(c.Messages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, persona_id, target_raise, messages_json, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.UserID.String(), c.PersonaID, c.TargetRaise, string(msgs), string(c.Status),
		c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

const sqliteConversationColumns = `id, user_id, persona_id, target_raise, messages_json, status, outcome, grading_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteConversation(row rowScanner) (*Conversation, error) {
	var (
		c                    Conversation
		id, userID           string
		status, outcome      string
		msgs                 string
		result               sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &userID, &c.PersonaID, &c.TargetRaise, &msgs, &status, &outcome, &result, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if c.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	c.Status = conversation.Status(status)
	c.Outcome = conversation.Outcome(outcome)
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	c.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	var raw []byte
	if result.Valid {
		raw = []byte(result.String)
	}
	if err := decodeInto(&c, []byte(msgs), raw); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, userID, id uuid.UUID) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteConversationColumns+`
		FROM conversations WHERE id = ? AND user_id = ?`,
		id.String(), userID.String(),
	)
	c, err := scanSQLiteConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, userID uuid.UUID, limit int) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteConversationColumns+`
		FROM conversations WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`,
		userID.String(), listLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := []*Conversation{}
	for rows.Next() {
		c, err := scanSQLiteConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateMessages(ctx context.Context, userID, id uuid.UUID, msgs []conversation.Message) error {
	b, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET messages_json = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = 'active'`,
		string(b), time.Now().UnixMilli(), id.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("update messages: %w", err)
	}
	return s.checkGuarded(ctx, res, userID, id)
}

func (s *SQLiteStore) CompleteConversation(ctx context.Context, userID, id uuid.UUID, outcome conversation.Outcome, result grading.Result) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode grading: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET status = 'completed', outcome = ?, grading_json = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = 'active'`,
		string(outcome), string(b), time.Now().UnixMilli(), id.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("complete conversation: %w", err)
	}
	return s.checkGuarded(ctx, res, userID, id)
}

func (s *SQLiteStore) checkGuarded(ctx context.Context, res sql.Result, userID, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM conversations WHERE id = ? AND user_id = ?`, id.String(), userID.String(),
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	return ErrAlreadyCompleted
}

func (s *SQLiteStore) ensureLedger(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_credits (user_id, credits, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID.String(), s.startingCredits, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ensure credit row: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Credits(ctx context.Context, userID uuid.UUID) (int, error) {
	if err := s.ensureLedger(ctx, userID); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT credits FROM user_credits WHERE user_id = ?`, userID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("get credits: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ConsumeCredit(ctx context.Context, userID uuid.UUID) (int, error) {
	if err := s.ensureLedger(ctx, userID); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `
		UPDATE user_credits SET credits = credits - 1, updated_at = ?
		WHERE user_id = ? AND credits > 0
		RETURNING credits`,
		time.Now().UnixMilli(), userID.String(),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoCredits
	}
	if err != nil {
		return 0, fmt.Errorf("consume credit: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) AddCredits(ctx context.Context, userID uuid.UUID, n int) (int, error) {
	now := time.Now().UnixMilli()
	var total int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_credits (user_id, credits, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE
		SET credits = user_credits.credits + ?, updated_at = excluded.updated_at
		RETURNING credits`,
		userID.String(), s.startingCredits+n, now, n,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return total, nil
}
