package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"mailpump/delivery"
	"mailpump/drain"
	"mailpump/health"
	"mailpump/internal/config"
	"mailpump/internal/dkim"
	"mailpump/internal/logging"
	"mailpump/queue"
	"mailpump/ratelimit"
	"mailpump/sender"
	"mailpump/storage"
	"mailpump/tlsconfig"
	"mailpump/worker"
)

const defaultRunBudget = 5 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var limiterOpts []ratelimit.Option
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limiterOpts = append(limiterOpts, ratelimit.WithStatsSink(ratelimit.NewRedisSink(rdb)))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis stats sink enabled")
	}

	limiter := ratelimit.New(ratelimit.Config{
		GlobalPerSecond: cfg.GlobalRatePerSecond,
		DomainLimits:    cfg.DomainLimits,
		DefaultCooldown: cfg.Cooldown,
	}, log, limiterOpts...)
	limiter.Start()
	defer limiter.Stop()

	signer, err := dkim.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("dkim configuration invalid")
	}
	if signer != nil {
		log.Info().Msg("dkim signing enabled")
	}

	tlsConf, err := tlsconfig.Load(cfg.SMTP.Host)
	if err != nil {
		log.Fatal().Err(err).Msg("tls configuration invalid")
	}

	pool := delivery.NewPool(delivery.Config{
		Host:            cfg.SMTP.Host,
		Port:            cfg.SMTP.Port,
		Username:        cfg.SMTP.Username,
		Password:        cfg.SMTP.Password,
		HelloName:       cfg.SMTP.HelloName,
		ImplicitTLS:     cfg.SMTP.ImplicitTLS,
		DisableSTARTTLS: cfg.SMTP.DisableSTARTTLS,
		MaxConnections:  cfg.SMTP.MaxConnections,
		MaxMessages:     cfg.SMTP.MaxMessages,
		ConnectTimeout:  cfg.SMTP.ConnectTimeout,
		GreetingTimeout: cfg.SMTP.GreetingTimeout,
		SocketTimeout:   cfg.SMTP.SocketTimeout,
		TLS:             tlsConf,
	}, signer, log)
	defer pool.Close()

	snd := sender.New(sender.Config{
		From:            cfg.SMTP.From,
		ReplyTo:         cfg.SMTP.ReplyTo,
		ReturnPath:      cfg.SMTP.ReturnPath,
		ListUnsubscribe: cfg.SMTP.ListUnsubscribe,
		XMailer:         cfg.SMTP.XMailer,
		ExtraHeaders:    cfg.SMTP.ExtraHeaders,

		MaxAttempts:       cfg.MaxAttempts,
		InitialBackoff:    cfg.InitialRetry,
		MaxBackoff:        cfg.MaxRetry,
		IdempotencyWindow: cfg.IdempotencyWindow,
		Cooldown:          cfg.Cooldown,
	}, pool, limiter, log)
	snd.Start()
	defer snd.Stop()

	q, err := openQueue(ctx, cfg.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("queue setup failed")
	}

	archive := storage.NewArchive(cfg.ArchiveDir)
	workers := worker.New(q, snd, cfg.MaxConcurrency, archive, log)
	drainer := drain.New(q, workers, cfg.BatchSize, cfg.EmptyPollThreshold, log)

	go health.Serve(cfg.HealthPort, limiter, log)

	deadline := invocationDeadline()
	drainDeadline := deadline.Add(-cfg.DrainBuffer)
	log.Info().
		Time("deadline", deadline).
		Time("drain_deadline", drainDeadline).
		Int("batch_size", cfg.BatchSize).
		Int("max_concurrency", cfg.MaxConcurrency).
		Msg("starting drain")

	summary := drainer.Drain(ctx, drainDeadline)
	log.Info().
		Int("processed", summary.Processed).
		Int("sent", summary.Sent).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("permanent", summary.Permanent).
		Float64("elapsed_sec", summary.ElapsedSec).
		Str("stopped_reason", summary.StoppedReason).
		Msg("run complete")
}

// invocationDeadline resolves the wall-clock deadline for this run.
// DRAIN_DEADLINE_MS is an absolute epoch-milliseconds deadline handed down
// by an external scheduler; RUN_BUDGET_MS is a relative budget for
// self-scheduled runs.
func invocationDeadline() time.Time {
	if v := os.Getenv("DRAIN_DEADLINE_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms)
		}
	}
	budget := defaultRunBudget
	if v := os.Getenv("RUN_BUDGET_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			budget = time.Duration(ms) * time.Millisecond
		}
	}
	return time.Now().Add(budget)
}

func openQueue(ctx context.Context, cfg config.QueueConfig) (queue.Queue, error) {
	switch cfg.Driver {
	case "memory":
		return queue.NewMemory(cfg.VisibilityTimeout), nil
	default:
		return queue.NewSQS(ctx, cfg.QueueURL, cfg.DeadLetterURL)
	}
}
