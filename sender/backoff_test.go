package sender

import (
	"testing"
	"time"
)

func TestBackoffBounds(t *testing.T) {
	initial := time.Second
	max := time.Minute

	for attempt := 1; attempt <= 4; attempt++ {
		base := initial << uint(attempt-1)
		upper := base + base*3/10
		for i := 0; i < 50; i++ {
			delay := backoffDelay(attempt, initial, max)
			if delay < base || delay > upper {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, delay, base, upper)
			}
		}
	}
}

func TestBackoffCap(t *testing.T) {
	for i := 0; i < 20; i++ {
		if delay := backoffDelay(12, time.Second, time.Minute); delay != time.Minute {
			t.Fatalf("expected cap at 60s, got %v", delay)
		}
	}
}

func TestBackoffDefaults(t *testing.T) {
	if delay := backoffDelay(0, 0, 0); delay < time.Second || delay > 1300*time.Millisecond {
		t.Fatalf("expected defaulted first backoff in [1s, 1.3s], got %v", delay)
	}
}

func TestPresendJitterRanges(t *testing.T) {
	for i := 0; i < 100; i++ {
		if d := presendJitter("gmail.com"); d < 50*time.Millisecond || d >= 250*time.Millisecond {
			t.Fatalf("gmail jitter %v outside [50ms, 250ms)", d)
		}
		if d := presendJitter("example.com"); d < 0 || d >= 100*time.Millisecond {
			t.Fatalf("default jitter %v outside [0, 100ms)", d)
		}
	}
}
