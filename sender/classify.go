package sender

import (
	"regexp"

	"mailpump/delivery"
)

// classification is the sender's verdict on a failed attempt.
type classification struct {
	Retryable bool
	// Cooldown marks provider throttling: the domain gets a hard block on
	// top of the retry handling.
	Cooldown bool
	Code     int
}

// throttlePattern flags replies that should trigger a domain cooldown even
// without a 421 code: the throttling vocabulary the big providers use.
var throttlePattern = regexp.MustCompile(`(?i)rate limit|too many|quota|exceeded|temporarily deferred`)

// permanentCodes are hard failures: mailbox unavailable, user not local,
// message too large. Everything else 4xx/5xx is treated as transient;
// other 5xx replies are usually server-side trouble that clears.
var permanentCodes = map[int]bool{550: true, 551: true, 552: true}

// classify maps an attempt error onto the retry policy. Unknown errors
// (transport failures, no reply code) are retryable.
func classify(err error) classification {
	code := delivery.ReplyCode(err)
	cooldown := code == 421 || throttlePattern.MatchString(err.Error())

	if permanentCodes[code] {
		return classification{Retryable: false, Code: code}
	}
	return classification{Retryable: true, Cooldown: cooldown, Code: code}
}
