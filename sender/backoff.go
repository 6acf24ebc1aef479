package sender

import (
	"math/rand"
	"time"
)

// backoffDelay computes the sleep before retry attempt+1: the exponential
// base initial·2^(attempt−1) plus additive uniform jitter of up to 30% of
// the base, capped at max.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = time.Minute
	}

	shift := uint(attempt - 1)
	if shift > 20 {
		shift = 20
	}
	base := initial << shift
	if base <= 0 || base > max {
		return max
	}

	jitter := time.Duration(rand.Int63n(int64(base)*3/10 + 1))
	delay := base + jitter
	if delay > max {
		delay = max
	}
	return delay
}

// presendJitter is the small randomized pause before the first attempt.
// Google domains get a wider 50–250ms spread; everyone else 0–100ms.
func presendJitter(domain string) time.Duration {
	switch domain {
	case "gmail.com", "googlemail.com":
		return 50*time.Millisecond + time.Duration(rand.Int63n(int64(200*time.Millisecond)))
	default:
		return time.Duration(rand.Int63n(int64(100 * time.Millisecond)))
	}
}
