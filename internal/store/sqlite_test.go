package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/grading"
)

func newTestSQLite(t *testing.T, startingCredits int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "test.db"), startingCredits)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_ConversationLifecycle(t *testing.T) {
	s := newTestSQLite(t, 1)
	ctx := context.Background()
	user := uuid.New()

	c := &Conversation{
		UserID:      user,
		PersonaID:   "gaslighter",
		TargetRaise: "15%",
		Messages:    []conversation.Message{{Role: conversation.RoleBoss, Content: "Oh, you wanted to talk?"}},
	}
	require.NoError(t, s.CreateConversation(ctx, c))
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, conversation.StatusActive, c.Status)

	got, err := s.GetConversation(ctx, user, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "gaslighter", got.PersonaID)
	assert.Equal(t, "15%", got.TargetRaise)
	assert.Equal(t, c.Messages, got.Messages)
	assert.Nil(t, got.Grading)

	msgs := append(got.Messages, conversation.Message{Role: conversation.RoleUser, Content: "I want a raise."})
	require.NoError(t, s.UpdateMessages(ctx, user, c.ID, msgs))

	result := grading.Fallback()
	require.NoError(t, s.CompleteConversation(ctx, user, c.ID, conversation.OutcomeWon, result))

	got, err = s.GetConversation(ctx, user, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, conversation.StatusCompleted, got.Status)
	assert.Equal(t, conversation.OutcomeWon, got.Outcome)
	require.NotNil(t, got.Grading)
	assert.Equal(t, result, *got.Grading)

	err = s.CompleteConversation(ctx, user, c.ID, conversation.OutcomeGaveUp, result)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	err = s.UpdateMessages(ctx, user, c.ID, msgs)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestSQLite_ConversationsScopedToUser(t *testing.T) {
	s := newTestSQLite(t, 1)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	c := &Conversation{UserID: owner, PersonaID: "budget-blocker"}
	require.NoError(t, s.CreateConversation(ctx, c))

	_, err := s.GetConversation(ctx, other, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateMessages(ctx, other, c.ID, nil), ErrNotFound)
	assert.ErrorIs(t, s.CompleteConversation(ctx, other, c.ID, conversation.OutcomeWon, grading.Fallback()), ErrNotFound)

	list, err := s.ListConversations(ctx, other, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLite_ListNewestFirst(t *testing.T) {
	s := newTestSQLite(t, 1)
	ctx := context.Background()
	user := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		c := &Conversation{UserID: user, PersonaID: "data-driven"}
		require.NoError(t, s.CreateConversation(ctx, c))
		ids = append(ids, c.ID)
	}

	list, err := s.ListConversations(ctx, user, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
}

func TestSQLite_Credits(t *testing.T) {
	s := newTestSQLite(t, 1)
	ctx := context.Background()
	user := uuid.New()

	n, err := s.Credits(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.ConsumeCredit(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.ConsumeCredit(ctx, user)
	assert.ErrorIs(t, err, ErrNoCredits)

	n, err = s.AddCredits(ctx, user, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fresh := uuid.New()
	n, err = s.AddCredits(ctx, fresh, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "new ledger rows start with the starting balance")
}

func TestSQLite_ConsumeCreditIsAtomic(t *testing.T) {
	s := newTestSQLite(t, 0)
	ctx := context.Background()
	user := uuid.New()

	_, err := s.AddCredits(ctx, user, 5)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed int
		denied   int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ConsumeCredit(ctx, user)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				consumed++
			} else if assert.ErrorIs(t, err, ErrNoCredits) {
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, consumed)
	assert.Equal(t, 15, denied)

	n, err := s.Credits(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpen_FallsBackToSQLite(t *testing.T) {
	repo, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "open.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	_, ok := repo.(*SQLiteStore)
	assert.True(t, ok)
	assert.NoError(t, repo.Ping(context.Background()))
}
