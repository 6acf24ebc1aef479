package config

import (
	"os"
	"strconv"
	"strings"
)

// DefaultDomainKey is the reserved table entry applied to domains without
// their own per-minute limit.
const DefaultDomainKey = "default"

// defaultDomainLimits holds per-minute send ceilings tuned to the major
// providers' observed throttling thresholds.
var defaultDomainLimits = map[string]int{
	"gmail.com":      15,
	"googlemail.com": 15,
	"outlook.com":    20,
	"hotmail.com":    20,
	"live.com":       20,
	"msn.com":        20,
	"yahoo.com":      25,
	"aol.com":        25,
	DefaultDomainKey: 30,
}

// DomainLimits returns the per-domain per-minute table, applying any
// overrides from DOMAIN_LIMITS ("gmail.com=10,default=20"). Unparsable
// entries are ignored; the "default" entry is always present.
func DomainLimits() map[string]int {
	limits := make(map[string]int, len(defaultDomainLimits))
	for domain, limit := range defaultDomainLimits {
		limits[domain] = limit
	}
	value := strings.TrimSpace(os.Getenv("DOMAIN_LIMITS"))
	if value == "" {
		return limits
	}
	for _, part := range strings.Split(value, ",") {
		domain, raw, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		domain = strings.ToLower(strings.TrimSpace(domain))
		limit, err := strconv.Atoi(strings.TrimSpace(raw))
		if domain == "" || err != nil || limit < 1 {
			continue
		}
		limits[domain] = limit
	}
	return limits
}
