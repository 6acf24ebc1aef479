// Package ratelimit enforces the two send ceilings: a global per-second
// budget and a per-recipient-domain per-minute budget, with hard cooldowns
// for domains whose provider has signalled throttling.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mailpump/internal/config"
	"mailpump/internal/email"
	"mailpump/internal/metrics"
)

const (
	globalWindow    = time.Second
	domainWindow    = time.Minute
	janitorInterval = time.Minute
)

// Config holds the limiter's ceilings. DomainLimits must contain the
// "default" entry; config.DomainLimits() guarantees that.
type Config struct {
	GlobalPerSecond int
	DomainLimits    map[string]int
	DefaultCooldown time.Duration
}

// domainState tracks one recipient domain. stamps is append-only within the
// window: entries are pruned from the front, never reordered.
type domainState struct {
	mu            sync.Mutex
	stamps        []time.Time
	cooldownUntil time.Time
}

// Limiter implements the two-tier sliding-window policy. One instance per
// process, shared by all send workers.
type Limiter struct {
	cfg Config
	log zerolog.Logger

	globalMu sync.Mutex
	global   []time.Time

	mu      sync.RWMutex
	domains map[string]*domainState

	sink StatsSink
	quit chan struct{}

	now func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithStatsSink attaches a best-effort decision sink.
func WithStatsSink(s StatsSink) Option {
	return func(l *Limiter) { l.sink = s }
}

// New creates a Limiter. Call Start to run the maintenance loop.
func New(cfg Config, log zerolog.Logger, opts ...Option) *Limiter {
	if cfg.GlobalPerSecond < 1 {
		cfg.GlobalPerSecond = 35
	}
	if cfg.DefaultCooldown <= 0 {
		cfg.DefaultCooldown = time.Minute
	}
	l := &Limiter{
		cfg:     cfg,
		log:     log.With().Str("component", "ratelimit").Logger(),
		domains: make(map[string]*domainState),
		quit:    make(chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the once-a-minute janitor that evicts idle domain states.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-l.quit:
				return
			case <-ticker.C:
				l.evictIdle()
			}
		}
	}()
}

// Stop shuts down the janitor.
func (l *Limiter) Stop() {
	close(l.quit)
}

// Wait blocks until a send attempt to the recipient's domain is
// permissible, or until ctx is done. The caller invokes it once per
// attempt; the decision is not re-checked after waking.
func (l *Limiter) Wait(ctx context.Context, recipient string) error {
	domain := email.DomainOrUnknown(recipient)
	now := l.now()

	delay := l.globalDelay(now)
	cooldown := false
	if d, cd := l.domainDelay(domain, now); d > delay || (cd && d >= delay) {
		delay, cooldown = d, cd
	}

	l.record(ctx, Event{Domain: domain, Delayed: delay > 0, Cooldown: cooldown, At: now})

	if delay <= 0 {
		return nil
	}
	metrics.RateLimitWaits.Inc()
	l.log.Debug().Str("domain", domain).Dur("delay", delay).Bool("cooldown", cooldown).
		Msg("rate limit wait")
	return sleepCtx(ctx, delay)
}

// RecordSend registers a successful submission against both windows.
// Called only on success.
func (l *Limiter) RecordSend(domain string) {
	now := l.now()

	l.globalMu.Lock()
	l.global = append(l.global, now)
	l.globalMu.Unlock()

	state := l.state(domain)
	state.mu.Lock()
	state.stamps = append(state.stamps, now)
	state.mu.Unlock()
}

// SetCooldown blocks the domain entirely until now+d, replacing any earlier
// value. A non-positive d applies the configured default.
func (l *Limiter) SetCooldown(domain string, d time.Duration) {
	if d <= 0 {
		d = l.cfg.DefaultCooldown
	}
	until := l.now().Add(d)
	state := l.state(domain)
	state.mu.Lock()
	state.cooldownUntil = until
	state.mu.Unlock()
	metrics.CooldownsSet.Inc()
	l.log.Warn().Str("domain", domain).Time("until", until).Msg("domain cooldown set")
}

// ClearCooldown lifts an active cooldown for the domain.
func (l *Limiter) ClearCooldown(domain string) {
	l.mu.RLock()
	state, ok := l.domains[domain]
	l.mu.RUnlock()
	if !ok {
		return
	}
	state.mu.Lock()
	state.cooldownUntil = time.Time{}
	state.mu.Unlock()
}

// globalDelay returns how long the caller must wait for the global
// per-second budget.
func (l *Limiter) globalDelay(now time.Time) time.Duration {
	l.globalMu.Lock()
	defer l.globalMu.Unlock()
	l.global = prune(l.global, now.Add(-globalWindow))
	if len(l.global) < l.cfg.GlobalPerSecond {
		return 0
	}
	return l.global[0].Add(globalWindow).Sub(now)
}

// domainDelay returns the wait imposed by the domain window or an active
// cooldown; the bool reports whether a cooldown drove the delay. Cooldown
// has priority over the sliding window.
func (l *Limiter) domainDelay(domain string, now time.Time) (time.Duration, bool) {
	state := l.state(domain)
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.cooldownUntil.After(now) {
		return state.cooldownUntil.Sub(now), true
	}
	state.stamps = prune(state.stamps, now.Add(-domainWindow))
	if len(state.stamps) < l.limitFor(domain) {
		return 0, false
	}
	return state.stamps[0].Add(domainWindow).Sub(now), false
}

// state returns the tracked state for a domain, creating it on first use.
func (l *Limiter) state(domain string) *domainState {
	l.mu.RLock()
	state, ok := l.domains[domain]
	l.mu.RUnlock()
	if ok {
		return state
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if state, ok = l.domains[domain]; ok {
		return state
	}
	state = &domainState{}
	l.domains[domain] = state
	return state
}

func (l *Limiter) limitFor(domain string) int {
	if limit, ok := l.cfg.DomainLimits[domain]; ok {
		return limit
	}
	if limit, ok := l.cfg.DomainLimits[config.DefaultDomainKey]; ok {
		return limit
	}
	return 30
}

// evictIdle drops domain states with an empty window and no live cooldown.
func (l *Limiter) evictIdle() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for domain, state := range l.domains {
		state.mu.Lock()
		state.stamps = prune(state.stamps, now.Add(-domainWindow))
		idle := len(state.stamps) == 0 && !state.cooldownUntil.After(now)
		state.mu.Unlock()
		if idle {
			delete(l.domains, domain)
		}
	}
}

func (l *Limiter) record(ctx context.Context, ev Event) {
	if l.sink == nil {
		return
	}
	if err := l.sink.Record(ctx, ev); err != nil {
		l.log.Debug().Err(err).Str("domain", ev.Domain).Msg("stats sink record failed")
	}
}

// prune drops timestamps at or before cutoff, preserving order.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
