package sender

import (
	"sync"
	"time"
)

// idempotencyTable maps message fingerprints to the time of their first
// successful send. Entries live for one window and are evicted lazily on
// lookup plus periodically by the sweeper. The table is per-process by
// design: idempotency does not survive restarts.
type idempotencyTable struct {
	mu      sync.Mutex
	entries map[string]time.Time
	window  time.Duration
}

func newIdempotencyTable(window time.Duration) *idempotencyTable {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &idempotencyTable{
		entries: make(map[string]time.Time),
		window:  window,
	}
}

// seen reports whether the fingerprint was sent within the window. Stale
// entries are evicted on the way.
func (t *idempotencyTable) seen(fingerprint string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.entries[fingerprint]
	if !ok {
		return false
	}
	if now.Sub(at) >= t.window {
		delete(t.entries, fingerprint)
		return false
	}
	return true
}

// record stores the fingerprint's first send time. An existing live entry
// is kept, preserving first_sent_at.
func (t *idempotencyTable) record(fingerprint string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at, ok := t.entries[fingerprint]; ok && now.Sub(at) < t.window {
		return
	}
	t.entries[fingerprint] = now
}

// sweep drops every entry older than the window.
func (t *idempotencyTable) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fingerprint, at := range t.entries {
		if now.Sub(at) >= t.window {
			delete(t.entries, fingerprint)
		}
	}
}

func (t *idempotencyTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
