package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink records gate decisions in Redis: a cumulative total hash plus
// per-minute buckets with a TTL, keyed per domain. Useful for watching
// provider pressure across invocations; everything here is best-effort.
type RedisSink struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisSinkOption customises a RedisSink.
type RedisSinkOption func(*RedisSink)

// WithPrefix overrides the key prefix (default "mailpump:ratelimit").
func WithPrefix(prefix string) RedisSinkOption {
	return func(s *RedisSink) { s.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets the expiry for minute buckets (default 24h). The total hash
// never expires.
func WithTTL(ttl time.Duration) RedisSinkOption {
	return func(s *RedisSink) { s.ttl = ttl }
}

// NewRedisSink wraps a redis client as a StatsSink.
func NewRedisSink(rdb *redis.Client, opts ...RedisSinkOption) *RedisSink {
	s := &RedisSink{
		rdb:    rdb,
		prefix: "mailpump:ratelimit",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements StatsSink.
func (s *RedisSink) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "allowed"
	switch {
	case ev.Cooldown:
		field = "cooldown"
	case ev.Delayed:
		field = "delayed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	domainKey := fmt.Sprintf("%s:domain:%s", s.prefix, ev.Domain)
	pipe.HIncrBy(ctx, domainKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, domainKey, s.ttl)
	}

	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}
