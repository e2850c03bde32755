package nats

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/wardenhq/warden/internal/domain/gate"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Sink {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	s, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestSink_Record(t *testing.T) {
	s := testConnect(t)
	ctx := context.Background()

	want := gate.DecisionRecord{
		ID:        "d-" + t.Name(),
		AgentID:   "agent-1",
		Tool:      "delete_repo",
		Frame:     "cleanup",
		Verdict:   gate.VerdictBlocked,
		Stage:     gate.StageCircuitBreaker,
		Reason:    "agent halted: maintenance",
		Timestamp: time.Now().UTC(),
	}

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: "decisions.blocked",
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		t.Fatalf("consumer create: %v", err)
	}

	if err := s.Record(ctx, want); err != nil {
		t.Fatalf("Record: %v", err)
	}

	msg, err := consumer.Next(jetstream.FetchMaxWait(5 * time.Second))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	_ = msg.Ack()

	var got gate.DecisionRecord
	if err := json.Unmarshal(msg.Data(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}
	if got.Verdict != gate.VerdictBlocked {
		t.Errorf("Verdict = %q, want %q", got.Verdict, gate.VerdictBlocked)
	}
}
