package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryFetchAck(t *testing.T) {
	q := NewMemory(time.Minute)
	q.Push(`{"to":"a@b.com","text":"hi"}`, nil)

	batch, err := q.Fetch(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected 1 message, got %d", len(batch))
	}
	if batch[0].ReceiptHandle == "" {
		t.Fatalf("expected a receipt handle")
	}

	// In flight: a second fetch sees nothing.
	again, err := q.Fetch(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no visible messages while in flight, got %d", len(again))
	}

	if err := q.Ack(context.Background(), batch[0].ReceiptHandle); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if q.Depth() != 0 {
		t.Fatalf("expected empty queue after ack")
	}
}

func TestMemoryVisibilityRedelivery(t *testing.T) {
	q := NewMemory(time.Minute)
	base := time.Unix(1000, 0)
	q.now = func() time.Time { return base }

	q.Push("payload", nil)
	batch, _ := q.Fetch(context.Background(), 10, 0)
	if len(batch) != 1 {
		t.Fatalf("expected 1 message, got %d", len(batch))
	}

	// Not acked; after the visibility timeout it reappears.
	base = base.Add(61 * time.Second)
	redelivered, _ := q.Fetch(context.Background(), 10, 0)
	if len(redelivered) != 1 {
		t.Fatalf("expected redelivery, got %d", len(redelivered))
	}
	if redelivered[0].ID != batch[0].ID {
		t.Fatalf("expected the same message back")
	}
	if redelivered[0].ReceiptHandle == batch[0].ReceiptHandle {
		t.Fatalf("expected a fresh receipt handle on redelivery")
	}
}

func TestMemoryFetchCap(t *testing.T) {
	q := NewMemory(time.Minute)
	for i := 0; i < 15; i++ {
		q.Push("payload", nil)
	}

	batch, _ := q.Fetch(context.Background(), 100, 0)
	if len(batch) != MaxBatch {
		t.Fatalf("expected fetch capped at %d, got %d", MaxBatch, len(batch))
	}
}

func TestMemoryDeadLetter(t *testing.T) {
	q := NewMemory(time.Minute)
	attrs := map[string]string{"to": "a@b.com"}
	if err := q.DeadLetter(context.Background(), "broken payload", attrs); err != nil {
		t.Fatalf("dead letter: %v", err)
	}

	records := q.DeadLetters()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Body != "broken payload" || records[0].Attributes["to"] != "a@b.com" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	if records[0].ID == "" {
		t.Fatalf("expected record ID")
	}
}

func TestMemoryLongPollHonoursContext(t *testing.T) {
	q := NewMemory(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := q.Fetch(ctx, 10, 20)
	if err == nil {
		t.Fatalf("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("long poll ignored cancellation")
	}
}
