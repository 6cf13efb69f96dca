//go:build integration

package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PublishGraded(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	ctx := context.Background()
	logger := slog.Default()

	client, err := NewClient(ctx, natsURL, os.Getenv("NATS_TOKEN"), logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan ConversationGraded, 1)

	err = client.Subscribe(SubjectConversationGraded, func(subject string, data []byte) {
		var ev ConversationGraded
		if err := json.Unmarshal(data, &ev); err == nil {
			received <- ev
		}
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Give subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	err = client.Publish(SubjectConversationGraded, ConversationGraded{
		ConversationID:      "integration-test",
		Outcome:             "won",
		LikelihoodOfSuccess: 64,
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case ev := <-received:
		if ev.ConversationID != "integration-test" || ev.LikelihoodOfSuccess != 64 {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
