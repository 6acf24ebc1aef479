// Package sender implements the SMTP send pipeline: idempotency check,
// rate-limit gate, header and body assembly, and the classified retry loop
// with exponential backoff. Every request resolves to exactly one Outcome.
package sender

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mailpump/delivery"
	"mailpump/internal/email"
	"mailpump/internal/metrics"
	"mailpump/queue"
	"mailpump/ratelimit"
)

const sweepInterval = 10 * time.Minute

// Transport submits one envelope to the relay. delivery.Pool implements it.
type Transport interface {
	Submit(ctx context.Context, env delivery.Envelope) error
}

// Config holds the sender's envelope defaults and retry policy.
type Config struct {
	From            string
	ReplyTo         string
	ReturnPath      string
	ListUnsubscribe string
	XMailer         string
	ExtraHeaders    map[string]string

	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	IdempotencyWindow time.Duration
	Cooldown          time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.IdempotencyWindow <= 0 {
		c.IdempotencyWindow = 24 * time.Hour
	}
	if c.Cooldown <= 0 {
		c.Cooldown = time.Minute
	}
	return c
}

// Sender drives individual sends. One instance per process, shared by all
// workers.
type Sender struct {
	cfg       Config
	transport Transport
	limiter   *ratelimit.Limiter
	idem      *idempotencyTable
	log       zerolog.Logger
	quit      chan struct{}

	// injected in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Sender. Call Start to run the idempotency sweeper.
func New(cfg Config, transport Transport, limiter *ratelimit.Limiter, log zerolog.Logger) *Sender {
	cfg = cfg.withDefaults()
	return &Sender{
		cfg:       cfg,
		transport: transport,
		limiter:   limiter,
		idem:      newIdempotencyTable(cfg.IdempotencyWindow),
		log:       log.With().Str("component", "sender").Logger(),
		quit:      make(chan struct{}),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Start launches the periodic idempotency sweep; lookups already evict
// lazily, the sweeper just bounds the table between lookups.
func (s *Sender) Start() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				s.idem.sweep(s.now())
			}
		}
	}()
}

// Stop shuts down the sweeper.
func (s *Sender) Stop() {
	close(s.quit)
}

// Send delivers one request. The context carries the invocation deadline;
// all sleeps and the rate-limit gate abort when it expires.
func (s *Sender) Send(ctx context.Context, req queue.SendRequest) Outcome {
	log := s.log.With().Str("recipient", req.Recipient).Str("queue_message_id", req.QueueMessageID).Logger()

	fingerprint := req.Fingerprint()
	if s.idem.seen(fingerprint, s.now()) {
		metrics.MessagesSkipped.Inc()
		log.Info().Msg("skipping idempotent duplicate")
		return Outcome{Status: StatusSkipped, Reason: ReasonDuplicate}
	}

	domain := email.DomainOrUnknown(req.Recipient)
	if err := s.limiter.Wait(ctx, req.Recipient); err != nil {
		return Outcome{Status: StatusRetryable, Reason: ReasonTimeout, Err: err}
	}
	if err := s.sleep(ctx, presendJitter(domain)); err != nil {
		return Outcome{Status: StatusRetryable, Reason: ReasonTimeout, Err: err}
	}

	var lastErr error
	var lastCode int
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		metrics.SendAttempts.Inc()

		data, messageID, err := buildMessage(req, s.cfg, s.now())
		if err != nil {
			// Assembly is deterministic; failure here is a bug, not a
			// message problem worth retrying.
			metrics.MessagesPermanent.Inc()
			log.Error().Err(err).Msg("message assembly failed")
			return Outcome{Status: StatusPermanent, Err: err, Attempts: attempt}
		}

		err = s.transport.Submit(ctx, delivery.Envelope{
			From: s.cfg.From,
			To:   req.Recipient,
			Data: data,
		})
		if err == nil {
			s.idem.record(fingerprint, s.now())
			s.limiter.RecordSend(domain)
			metrics.MessagesSent.Inc()
			log.Info().Str("smtp_message_id", messageID).Int("attempts", attempt).Msg("message sent")
			return Outcome{Status: StatusSent, SMTPMessageID: messageID, Attempts: attempt}
		}

		lastErr = err
		verdict := classify(err)
		lastCode = verdict.Code
		if verdict.Cooldown {
			s.limiter.SetCooldown(domain, s.cfg.Cooldown)
		}
		if !verdict.Retryable {
			metrics.MessagesPermanent.Inc()
			log.Warn().Err(err).Int("code", verdict.Code).Msg("permanent failure")
			return Outcome{Status: StatusPermanent, Err: err, Code: verdict.Code, Attempts: attempt}
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(attempt, s.cfg.InitialBackoff, s.cfg.MaxBackoff)
		log.Debug().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("transient failure, backing off")
		if err := s.sleep(ctx, delay); err != nil {
			return Outcome{Status: StatusRetryable, Reason: ReasonTimeout, Err: err, Attempts: attempt}
		}
	}

	metrics.MessagesRetryable.Inc()
	log.Warn().Err(lastErr).Int("attempts", s.cfg.MaxAttempts).Msg("retries exhausted")
	return Outcome{Status: StatusRetryable, Err: lastErr, Code: lastCode, Attempts: s.cfg.MaxAttempts}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
