package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeadLetter is one record captured by MemoryQueue's dead-letter side.
type DeadLetter struct {
	ID         string
	Body       string
	Attributes map[string]string
	At         time.Time
}

// inflight is a fetched-but-unacked message awaiting ack or redelivery.
type inflight struct {
	msg         Message
	redeliverAt time.Time
}

// MemoryQueue is an in-process Queue with visibility-timeout semantics,
// used for local runs and tests. Fetched messages stay invisible until
// acked or until the visibility timeout elapses, at which point they
// reappear at the front of the queue.
type MemoryQueue struct {
	mu          sync.Mutex
	visible     []Message
	invisible   map[string]inflight
	deadLetters []DeadLetter
	visibility  time.Duration

	now func() time.Time
}

// NewMemory creates a MemoryQueue with the given visibility timeout.
func NewMemory(visibility time.Duration) *MemoryQueue {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &MemoryQueue{
		invisible:  make(map[string]inflight),
		visibility: visibility,
		now:        time.Now,
	}
}

// Push enqueues a message and returns its ID.
func (q *MemoryQueue) Push(body string, attrs map[string]string) string {
	id := uuid.NewString()
	q.mu.Lock()
	q.visible = append(q.visible, Message{ID: id, Body: body, Attributes: attrs})
	q.mu.Unlock()
	return id
}

// Fetch implements Queue, polling every 25ms while long-polling.
func (q *MemoryQueue) Fetch(ctx context.Context, max int, waitSeconds int) ([]Message, error) {
	max, waitSeconds = clampFetch(max, waitSeconds)
	deadline := q.now().Add(time.Duration(waitSeconds) * time.Second)

	for {
		if batch := q.take(max); len(batch) > 0 {
			return batch, nil
		}
		if waitSeconds == 0 || !q.now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// take reclaims expired in-flight messages, then hands out up to max
// messages with fresh receipt handles.
func (q *MemoryQueue) take(max int) []Message {
	now := q.now()
	q.mu.Lock()
	defer q.mu.Unlock()

	for handle, inf := range q.invisible {
		if !inf.redeliverAt.After(now) {
			delete(q.invisible, handle)
			q.visible = append([]Message{inf.msg}, q.visible...)
		}
	}

	n := len(q.visible)
	if n == 0 {
		return nil
	}
	if n > max {
		n = max
	}
	batch := make([]Message, n)
	for i := 0; i < n; i++ {
		msg := q.visible[i]
		msg.ReceiptHandle = uuid.NewString()
		q.invisible[msg.ReceiptHandle] = inflight{msg: msg, redeliverAt: now.Add(q.visibility)}
		batch[i] = msg
	}
	q.visible = append(q.visible[:0], q.visible[n:]...)
	return batch
}

// Ack implements Queue.
func (q *MemoryQueue) Ack(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	delete(q.invisible, receiptHandle)
	q.mu.Unlock()
	return nil
}

// DeadLetter implements Queue.
func (q *MemoryQueue) DeadLetter(_ context.Context, body string, attrs map[string]string) error {
	q.mu.Lock()
	q.deadLetters = append(q.deadLetters, DeadLetter{
		ID:         uuid.NewString(),
		Body:       body,
		Attributes: attrs,
		At:         q.now(),
	})
	q.mu.Unlock()
	return nil
}

// DeadLetters returns a copy of the captured dead-letter records.
func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetter, len(q.deadLetters))
	copy(out, q.deadLetters)
	return out
}

// Depth reports how many messages are currently visible.
func (q *MemoryQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visible)
}
