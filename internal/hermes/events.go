package hermes

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	SubjectConversationStarted = "raisecoach.conversation.started"
	SubjectConversationGraded  = "raisecoach.conversation.graded"
	SubjectCreditsGranted      = "raisecoach.credits.granted"

	// SubjectCheckoutCompleted is published by the payments service once a
	// credit pack checkout has been paid.
	SubjectCheckoutCompleted = "payments.checkout.completed"
)

// ConversationStarted is emitted when a credit is spent on a new negotiation.
type ConversationStarted struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Persona        string    `json:"persona"`
	TargetRaise    string    `json:"target_raise"`
	StartedAt      time.Time `json:"started_at"`
}

// ConversationGraded is emitted once a negotiation has been scored.
type ConversationGraded struct {
	ConversationID      string    `json:"conversation_id"`
	UserID              string    `json:"user_id"`
	Persona             string    `json:"persona"`
	Outcome             string    `json:"outcome"`
	LikelihoodOfSuccess int       `json:"likelihood_of_success"`
	GradedAt            time.Time `json:"graded_at"`
}

// CreditsGranted is emitted after credits are added to a user's ledger.
type CreditsGranted struct {
	UserID  string `json:"user_id"`
	Added   int    `json:"added"`
	Balance int    `json:"balance"`
	Reason  string `json:"reason"`
}

// CheckoutCompleted is the payload consumed from SubjectCheckoutCompleted.
type CheckoutCompleted struct {
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	PaymentStatus string `json:"payment_status"`
}

var errUnpaid = errors.New("checkout not paid")

// DecodeCheckout parses a checkout event and returns the paying user.
func DecodeCheckout(data []byte) (CheckoutCompleted, uuid.UUID, error) {
	var ev CheckoutCompleted
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, uuid.Nil, fmt.Errorf("decode checkout: %w", err)
	}
	if ev.PaymentStatus != "" && ev.PaymentStatus != "paid" {
		return ev, uuid.Nil, fmt.Errorf("%w: status %q", errUnpaid, ev.PaymentStatus)
	}
	userID, err := uuid.Parse(ev.UserID)
	if err != nil {
		return ev, uuid.Nil, fmt.Errorf("checkout user id: %w", err)
	}
	return ev, userID, nil
}
