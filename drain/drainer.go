// Package drain runs the deadline-bounded fetch/dispatch loop that
// empties the send queue. The drainer owns no delivery logic of its own;
// it paces fetches, sizes long polls against the remaining budget, and
// stops on an empty queue or an approaching deadline.
package drain

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mailpump/internal/metrics"
	"mailpump/queue"
	"mailpump/sender"
	"mailpump/worker"
)

const (
	// loopGuard is the minimum budget worth starting another fetch for.
	loopGuard = 5 * time.Second

	batchBreather = 100 * time.Millisecond
	emptyPause    = time.Second
	errorPause    = 2 * time.Second
)

// Stop reasons reported in the run summary.
const (
	StoppedQueueEmpty = "queue_empty"
	StoppedTimeout    = "timeout"
)

// Summary describes one drain run.
type Summary struct {
	Processed     int     `json:"processed"`
	Sent          int     `json:"sent"`
	Skipped       int     `json:"skipped"`
	Failed        int     `json:"failed"`
	Permanent     int     `json:"permanent"`
	ElapsedSec    float64 `json:"elapsed_sec"`
	StoppedReason string  `json:"stopped_reason"`
}

// BatchResult partitions an event-driven batch into queue consequences.
type BatchResult struct {
	Results []worker.Result
	Acked   int
	Retried int
}

// Drainer drives the fetch/dispatch loop.
type Drainer struct {
	queue queue.Queue
	pool  *worker.Pool

	batchSize          int
	emptyPollThreshold int

	log zerolog.Logger

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Drainer fetching up to batchSize messages per poll and
// stopping after emptyPollThreshold consecutive empty polls.
func New(q queue.Queue, pool *worker.Pool, batchSize, emptyPollThreshold int, log zerolog.Logger) *Drainer {
	if batchSize < 1 || batchSize > queue.MaxBatch {
		batchSize = queue.MaxBatch
	}
	if emptyPollThreshold < 1 {
		emptyPollThreshold = 3
	}
	return &Drainer{
		queue:              q,
		pool:               pool,
		batchSize:          batchSize,
		emptyPollThreshold: emptyPollThreshold,
		log:                log.With().Str("component", "drainer").Logger(),
		now:                time.Now,
		sleep:              sleepCtx,
	}
}

// Drain fetches and dispatches until the queue stays empty, the deadline
// approaches, or ctx is cancelled. It always returns a summary of what it
// managed to do.
func (d *Drainer) Drain(ctx context.Context, deadline time.Time) Summary {
	start := d.now()
	var summary Summary
	summary.StoppedReason = StoppedTimeout

	emptyPolls := 0
	for {
		remaining := deadline.Sub(d.now())
		if remaining < loopGuard {
			break
		}
		if emptyPolls >= d.emptyPollThreshold {
			summary.StoppedReason = StoppedQueueEmpty
			break
		}
		if ctx.Err() != nil {
			break
		}

		msgs, err := d.queue.Fetch(ctx, d.batchSize, pollWait(remaining))
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			d.log.Error().Err(err).Msg("queue fetch failed")
			if d.sleep(ctx, errorPause) != nil {
				break
			}
			continue
		}
		if len(msgs) == 0 {
			emptyPolls++
			d.log.Debug().Int("empty_polls", emptyPolls).Msg("queue empty")
			if d.sleep(ctx, emptyPause) != nil {
				break
			}
			continue
		}
		emptyPolls = 0
		metrics.FetchBatches.Inc()

		results := d.pool.Dispatch(ctx, msgs, deadline)
		tally(&summary, results)

		if d.sleep(ctx, batchBreather) != nil {
			break
		}
	}

	summary.ElapsedSec = d.now().Sub(start).Seconds()
	d.log.Info().
		Int("processed", summary.Processed).
		Int("sent", summary.Sent).
		Int("failed", summary.Failed).
		Int("permanent", summary.Permanent).
		Str("stopped_reason", summary.StoppedReason).
		Float64("elapsed_sec", summary.ElapsedSec).
		Msg("drain finished")
	return summary
}

// ProcessBatch is the event-driven entry point: it dispatches one
// already-fetched batch and reports how the messages were settled. Used
// when an external scheduler hands the engine a batch instead of letting
// it poll.
func (d *Drainer) ProcessBatch(ctx context.Context, msgs []queue.Message, deadline time.Time) BatchResult {
	results := d.pool.Dispatch(ctx, msgs, deadline)

	var br BatchResult
	br.Results = results
	for _, r := range results {
		if r.Acked {
			br.Acked++
		} else {
			br.Retried++
		}
	}
	return br
}

// pollWait sizes the long poll so it cannot outlive the remaining budget:
// one second under the floor of the remaining seconds, clamped to the
// queue's maximum wait.
func pollWait(remaining time.Duration) int {
	w := int(remaining.Seconds()) - 1
	if w < 0 {
		w = 0
	}
	if w > queue.MaxWaitSeconds {
		w = queue.MaxWaitSeconds
	}
	return w
}

func tally(s *Summary, results []worker.Result) {
	for _, r := range results {
		s.Processed++
		switch r.Outcome.Status {
		case sender.StatusSent:
			s.Sent++
		case sender.StatusSkipped:
			s.Skipped++
		case sender.StatusPermanent:
			s.Failed++
			s.Permanent++
		case sender.StatusRetryable:
			s.Failed++
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
