// Package worker fans a fetched batch out to the sender with bounded
// concurrency and applies the queue-side consequence of each outcome:
// ack for sent/skipped, dead-letter plus ack for permanent failures,
// nothing for retryable ones (the visibility timeout redelivers).
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mailpump/internal/email"
	"mailpump/internal/metrics"
	"mailpump/queue"
	"mailpump/sender"
	"mailpump/storage"
)

// deadlineGuard is the minimum remaining budget to start a chunk. Anything
// closer to the deadline is not worth a network round-trip; the messages
// come back via the queue.
const deadlineGuard = 5 * time.Second

// Result pairs one message with its outcome and the queue action taken.
type Result struct {
	Message      queue.Message
	Outcome      sender.Outcome
	Acked        bool
	DeadLettered bool
}

// Pool dispatches batches. Messages within a chunk run fully in parallel;
// chunks run serially.
type Pool struct {
	queue   queue.Queue
	sender  *sender.Sender
	archive *storage.Archive
	size    int
	log     zerolog.Logger
}

// New creates a Pool with the given chunk size. archive may be nil.
func New(q queue.Queue, s *sender.Sender, size int, archive *storage.Archive, log zerolog.Logger) *Pool {
	if size < 1 {
		size = 10
	}
	return &Pool{
		queue:   q,
		sender:  s,
		archive: archive,
		size:    size,
		log:     log.With().Str("component", "worker").Logger(),
	}
}

// Dispatch processes the batch in chunks of the pool size. When fewer than
// deadlineGuard remain before deadline, the rest of the batch is marked
// retryable without any send attempt. The deadline also bounds the context
// handed to each send, so limiter waits and backoff sleeps in admitted
// tasks abort when it expires.
func (p *Pool) Dispatch(ctx context.Context, msgs []queue.Message, deadline time.Time) []Result {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	results := make([]Result, len(msgs))

	for start := 0; start < len(msgs); start += p.size {
		if time.Until(deadline) < deadlineGuard {
			p.log.Warn().Int("remaining", len(msgs)-start).Msg("deadline near, refusing remaining messages")
			for i := start; i < len(msgs); i++ {
				results[i] = Result{
					Message: msgs[i],
					Outcome: sender.Outcome{Status: sender.StatusRetryable, Reason: sender.ReasonTimeout},
				}
			}
			return results
		}

		end := start + p.size
		if end > len(msgs) {
			end = len(msgs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = p.process(ctx, msgs[i])
			}(i)
		}
		wg.Wait()
	}

	return results
}

// process handles one message end to end. A failure here never reaches the
// peers in the chunk.
func (p *Pool) process(ctx context.Context, msg queue.Message) (result Result) {
	metrics.SendsInFlight.Inc()
	defer metrics.SendsInFlight.Dec()

	result.Message = msg
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("queue_message_id", msg.ID).
				Msg("send task panicked, dead-lettering message")
			result.Outcome = sender.Outcome{Status: sender.StatusPermanent}
			result.DeadLettered, result.Acked = p.deadLetterAndAck(ctx, msg, email.UnknownDomain)
		}
	}()

	req, err := queue.ParseSendRequest(msg)
	if err != nil {
		p.log.Warn().Err(err).Str("queue_message_id", msg.ID).Msg("unparsable message")
		result.Outcome = sender.Outcome{Status: sender.StatusPermanent, Err: err}
		result.DeadLettered, result.Acked = p.deadLetterAndAck(ctx, msg, email.UnknownDomain)
		return result
	}

	result.Outcome = p.sender.Send(ctx, req)
	switch result.Outcome.Status {
	case sender.StatusSent, sender.StatusSkipped:
		result.Acked = p.ack(ctx, msg)
	case sender.StatusPermanent:
		result.DeadLettered, result.Acked = p.deadLetterAndAck(ctx, msg, req.Recipient)
	case sender.StatusRetryable:
		// Leave unacked; the queue redelivers after the visibility timeout.
	}
	return result
}

func (p *Pool) ack(ctx context.Context, msg queue.Message) bool {
	if err := p.queue.Ack(ctx, msg.ReceiptHandle); err != nil {
		p.log.Error().Err(err).Str("queue_message_id", msg.ID).Msg("ack failed")
		return false
	}
	return true
}

// deadLetterAndAck routes the original payload to the dead-letter queue
// and then acks. If dead-lettering fails the message stays unacked so a
// redelivery can retry the routing instead of losing the payload.
func (p *Pool) deadLetterAndAck(ctx context.Context, msg queue.Message, recipient string) (deadLettered, acked bool) {
	if err := p.queue.DeadLetter(ctx, msg.Body, msg.Attributes); err != nil {
		p.log.Error().Err(err).Str("queue_message_id", msg.ID).Msg("dead-letter failed, leaving message for redelivery")
		return false, false
	}
	metrics.MessagesDeadLettered.Inc()

	if p.archive != nil {
		if err := p.archive.Save(msg.ID, recipient, []byte(msg.Body)); err != nil {
			p.log.Warn().Err(err).Str("queue_message_id", msg.ID).Msg("dead-letter archive write failed")
		}
	}

	return true, p.ack(ctx, msg)
}
