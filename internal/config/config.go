package config

import (
	"os"
	"time"
)

const defaultHostname = "localhost"

// Config carries every tunable the engine recognises. It is loaded once in
// main and threaded down to the components; nothing reads the environment
// after Load returns.
type Config struct {
	// Rate limiting
	GlobalRatePerSecond int
	DomainLimits        map[string]int
	Cooldown            time.Duration

	// Sender
	MaxAttempts       int
	InitialRetry      time.Duration
	MaxRetry          time.Duration
	IdempotencyWindow time.Duration

	// Worker pool / drainer
	MaxConcurrency     int
	BatchSize          int
	DrainBuffer        time.Duration
	EmptyPollThreshold int

	SMTP  SMTPConfig
	Queue QueueConfig
	Redis RedisConfig

	// Observability
	LogLevel   string
	LogPretty  bool
	HealthPort string
	ArchiveDir string
}

// QueueConfig selects and addresses the message queue.
type QueueConfig struct {
	Driver            string // "sqs" or "memory"
	QueueURL          string
	DeadLetterURL     string
	VisibilityTimeout time.Duration // memory driver only
}

// RedisConfig addresses the optional send-stats sink. Disabled when Addr
// is empty.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads the full engine configuration from the environment.
func Load() Config {
	maxConcurrency := Int("MAX_CONCURRENCY", 10, 1)
	if maxConcurrency > 50 {
		maxConcurrency = 50
	}
	batchSize := Int("BATCH_SIZE", 10, 1)
	if batchSize > 10 {
		batchSize = 10
	}

	return Config{
		GlobalRatePerSecond: Int("GLOBAL_RATE_PER_SECOND", 35, 1),
		DomainLimits:        DomainLimits(),
		Cooldown:            Ms("COOLDOWN_MS", 60*time.Second),

		MaxAttempts:       Int("MAX_ATTEMPTS", 3, 1),
		InitialRetry:      Ms("INITIAL_RETRY_MS", time.Second),
		MaxRetry:          Ms("MAX_RETRY_MS", 60*time.Second),
		IdempotencyWindow: Ms("IDEMPOTENCY_WINDOW_MS", 24*time.Hour),

		MaxConcurrency:     maxConcurrency,
		BatchSize:          batchSize,
		DrainBuffer:        Ms("DRAIN_BUFFER_MS", 60*time.Second),
		EmptyPollThreshold: Int("EMPTY_POLL_THRESHOLD", 3, 1),

		SMTP: LoadSMTP(),
		Queue: QueueConfig{
			Driver:            Str("QUEUE_DRIVER", "sqs"),
			QueueURL:          Str("SQS_QUEUE_URL", ""),
			DeadLetterURL:     Str("SQS_DLQ_URL", ""),
			VisibilityTimeout: Ms("QUEUE_VISIBILITY_TIMEOUT_MS", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     Str("REDIS_ADDR", ""),
			Password: Str("REDIS_PASSWORD", ""),
			DB:       Int("REDIS_DB", 0, 0),
		},

		LogLevel:   Str("LOG_LEVEL", "info"),
		LogPretty:  Bool("LOG_PRETTY", false),
		HealthPort: Str("HEALTH_PORT", "8080"),
		ArchiveDir: Str("ARCHIVE_DIR", ""),
	}
}

// Hostname returns the name the engine identifies as in HELO/EHLO.
// Preference order: SMTP_HELLO env var, system hostname, fallback.
func Hostname() string {
	if env := os.Getenv("SMTP_HELLO"); env != "" {
		return env
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultHostname
}
