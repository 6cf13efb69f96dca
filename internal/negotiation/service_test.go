package negotiation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/raisecoach/internal/chat"
	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/gateway"
	"github.com/MikeSquared-Agency/raisecoach/internal/grading"
	"github.com/MikeSquared-Agency/raisecoach/internal/hermes"
	"github.com/MikeSquared-Agency/raisecoach/internal/persona"
	"github.com/MikeSquared-Agency/raisecoach/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []gateway.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req gateway.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recordingPublisher) Publish(subject string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return nil
}

type fixture struct {
	svc    *Service
	repo   *store.SQLiteStore
	llm    *fakeCompleter
	events *recordingPublisher
}

func newFixture(t *testing.T, startingCredits int) fixture {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "svc.db"), startingCredits)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	llm := &fakeCompleter{reply: "We just don't have the budget right now."}
	events := &recordingPublisher{}
	logger := discardLogger()
	svc := New(repo, chat.New(llm, logger), grading.New(llm, logger), events, 3, logger)
	return fixture{svc: svc, repo: repo, llm: llm, events: events}
}

func TestStart_SpendsCreditAndGreets(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	user := uuid.New()

	started, err := f.svc.Start(ctx, user, "budget-blocker", "10%")
	require.NoError(t, err)
	assert.Equal(t, 0, started.CreditsRemaining)
	assert.Contains(t, started.SystemPrompt, "10%")

	desc, err := persona.Lookup(persona.BudgetBlocker)
	require.NoError(t, err)
	require.Len(t, started.Conversation.Messages, 1)
	assert.Equal(t, conversation.Message{Role: conversation.RoleBoss, Content: desc.Greeting}, started.Conversation.Messages[0])
	assert.Equal(t, []string{hermes.SubjectConversationStarted}, f.events.subjects)

	_, err = f.svc.Start(ctx, user, "budget-blocker", "10%")
	assert.ErrorIs(t, err, store.ErrNoCredits)
}

func TestStart_ValidatesBeforeSpending(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.Start(ctx, user, "the-intern", "10%")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)

	_, err = f.svc.Start(ctx, user, "gaslighter", "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	n, err := f.svc.Credits(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTurn_AppendsBothSides(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	user := uuid.New()

	started, err := f.svc.Start(ctx, user, "data-driven", "$8,000")
	require.NoError(t, err)
	id := started.Conversation.ID

	res, err := f.svc.Turn(ctx, user, id, "I increased revenue by 20% last quarter.")
	require.NoError(t, err)
	assert.Equal(t, "We just don't have the budget right now.", res.Reply.Content)
	require.NotNil(t, res.Reply.CoachingTip)
	assert.Equal(t, "Strong Evidence", res.Reply.CoachingTip.Tactic)

	require.Len(t, f.llm.calls, 1)
	req := f.llm.calls[0]
	assert.Equal(t, started.SystemPrompt, req.System)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, gateway.RoleAssistant, req.Messages[0].Role)
	assert.Equal(t, gateway.RoleUser, req.Messages[1].Role)

	got, err := f.svc.Get(ctx, user, id)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, conversation.RoleUser, got.Messages[1].Role)
	assert.Equal(t, conversation.RoleBoss, got.Messages[2].Role)
}

func TestTurn_GatewayFailureLeavesTranscript(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	user := uuid.New()

	started, err := f.svc.Start(ctx, user, "gaslighter", "5%")
	require.NoError(t, err)

	f.llm.err = gateway.ErrRateLimited
	res, err := f.svc.Turn(ctx, user, started.Conversation.ID, "Sorry, I know it's a bad time.")
	assert.ErrorIs(t, err, gateway.ErrRateLimited)
	require.NotNil(t, res.Reply.CoachingTip, "tip survives gateway failure")
	assert.Equal(t, "Own Your Value", res.Reply.CoachingTip.Tactic)

	got, err := f.svc.Get(ctx, user, started.Conversation.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
}

func TestTurn_Rejections(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.Turn(ctx, user, uuid.New(), "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)

	started, err := f.svc.Start(ctx, user, "gaslighter", "5%")
	require.NoError(t, err)

	_, err = f.svc.Turn(ctx, user, started.Conversation.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Turn(ctx, uuid.New(), started.Conversation.ID, "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestComplete_GradesOnce(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	user := uuid.New()

	started, err := f.svc.Start(ctx, user, "gaslighter", "12%")
	require.NoError(t, err)

	graded := grading.Fallback()
	graded.LikelihoodOfSuccess = 81
	body, err := json.Marshal(graded)
	require.NoError(t, err)
	f.llm.reply = string(body)

	c, err := f.svc.Complete(ctx, user, started.Conversation.ID, conversation.OutcomeWon)
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusCompleted, c.Status)
	require.NotNil(t, c.Grading)
	assert.Equal(t, 81, c.Grading.LikelihoodOfSuccess)

	require.Len(t, f.llm.calls, 1)
	assert.Contains(t, f.llm.calls[0].Messages[0].Content, "Boss persona: The Gaslighter")
	assert.Contains(t, f.llm.calls[0].Messages[0].Content, "Outcome: won")

	again, err := f.svc.Complete(ctx, user, started.Conversation.ID, conversation.OutcomeGaveUp)
	require.NoError(t, err)
	assert.Equal(t, 81, again.Grading.LikelihoodOfSuccess)
	assert.Equal(t, conversation.OutcomeWon, again.Outcome)
	assert.Len(t, f.llm.calls, 1, "stored grading is reused")

	_, err = f.svc.Turn(ctx, user, started.Conversation.ID, "one more thing")
	assert.ErrorIs(t, err, store.ErrAlreadyCompleted)

	assert.Equal(t, []string{hermes.SubjectConversationStarted, hermes.SubjectConversationGraded}, f.events.subjects)
}

func TestComplete_GatewayErrorKeepsConversationOpen(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	user := uuid.New()

	started, err := f.svc.Start(ctx, user, "gaslighter", "12%")
	require.NoError(t, err)

	f.llm.err = gateway.ErrQuotaExhausted
	_, err = f.svc.Complete(ctx, user, started.Conversation.ID, conversation.OutcomeGaveUp)
	assert.ErrorIs(t, err, gateway.ErrQuotaExhausted)

	got, err := f.svc.Get(ctx, user, started.Conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusActive, got.Status)
}

func TestComplete_UnknownOutcome(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.Complete(context.Background(), uuid.New(), uuid.New(), conversation.Outcome("tied"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	user := uuid.New()

	for _, p := range []string{"budget-blocker", "gaslighter"} {
		_, err := f.svc.Start(ctx, user, p, "10%")
		require.NoError(t, err)
	}

	list, err := f.svc.History(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "gaslighter", list[0].PersonaID)
}

func TestCheckoutCompleted_GrantsOncePerSession(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	user := uuid.New()

	payload := []byte(`{"session_id": "cs_1", "user_id": "` + user.String() + `", "payment_status": "paid"}`)
	f.svc.HandleCheckoutCompleted(hermes.SubjectCheckoutCompleted, payload)
	f.svc.HandleCheckoutCompleted(hermes.SubjectCheckoutCompleted, payload)
	f.svc.HandleCheckoutCompleted(hermes.SubjectCheckoutCompleted, []byte(`{"user_id": "nope"}`))

	n, err := f.svc.Credits(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{hermes.SubjectCreditsGranted}, f.events.subjects)
}

func TestGrantPurchase(t *testing.T) {
	f := newFixture(t, 1)
	balance, err := f.svc.GrantPurchase(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 4, balance)
}
