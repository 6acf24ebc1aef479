// Package queue abstracts the at-least-once message queue feeding the
// engine: fetch with long polling, ack, and a dead-letter sibling for
// messages that must not re-enter the flow. Unacked messages reappear via
// the queue's visibility timeout; there is no explicit nack.
package queue

import "context"

// Fetch hard caps, matching the source queue's API limits.
const (
	MaxBatch       = 10
	MaxWaitSeconds = 20
)

// Message is one raw queue message.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
	Attributes    map[string]string
}

// Queue is the engine's view of the source queue.
type Queue interface {
	// Fetch returns up to max messages (capped at MaxBatch), long-polling
	// for up to waitSeconds (clamped to [0, MaxWaitSeconds]).
	Fetch(ctx context.Context, max int, waitSeconds int) ([]Message, error)
	// Ack removes a message from the source queue.
	Ack(ctx context.Context, receiptHandle string) error
	// DeadLetter enqueues the original body and attributes to the
	// dead-letter destination. The caller acks the original afterwards.
	DeadLetter(ctx context.Context, body string, attrs map[string]string) error
}

func clampFetch(max, waitSeconds int) (int, int) {
	if max < 1 {
		max = 1
	}
	if max > MaxBatch {
		max = MaxBatch
	}
	if waitSeconds < 0 {
		waitSeconds = 0
	}
	if waitSeconds > MaxWaitSeconds {
		waitSeconds = MaxWaitSeconds
	}
	return max, waitSeconds
}
