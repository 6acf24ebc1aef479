package ratelimit

import (
	"context"
	"time"
)

// Event is one gate decision, emitted to the optional StatsSink.
type Event struct {
	Domain   string
	Delayed  bool
	Cooldown bool
	At       time.Time
}

// StatsSink receives gate decisions. Implementations are best-effort: an
// error is logged by the limiter and never blocks a send.
type StatsSink interface {
	Record(ctx context.Context, ev Event) error
}

// DomainStats is the observable window state for one domain.
type DomainStats struct {
	InWindow      int        `json:"in_window"`
	Limit         int        `json:"limit"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

// Stats is a point-in-time snapshot of limiter utilisation.
type Stats struct {
	GlobalInWindow int                    `json:"global_in_window"`
	GlobalLimit    int                    `json:"global_limit"`
	Domains        map[string]DomainStats `json:"domains"`
}

// Stats reports current window occupancy per domain and globally.
func (l *Limiter) Stats() Stats {
	now := l.now()

	l.globalMu.Lock()
	l.global = prune(l.global, now.Add(-globalWindow))
	globalLen := len(l.global)
	l.globalMu.Unlock()

	stats := Stats{
		GlobalInWindow: globalLen,
		GlobalLimit:    l.cfg.GlobalPerSecond,
		Domains:        make(map[string]DomainStats),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for domain, state := range l.domains {
		state.mu.Lock()
		state.stamps = prune(state.stamps, now.Add(-domainWindow))
		ds := DomainStats{
			InWindow: len(state.stamps),
			Limit:    l.limitFor(domain),
		}
		if state.cooldownUntil.After(now) {
			until := state.cooldownUntil
			ds.CooldownUntil = &until
		}
		state.mu.Unlock()
		stats.Domains[domain] = ds
	}
	return stats
}
