package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailpump_messages_sent_total",
		Help: "Messages accepted by the upstream SMTP relay.",
	})
	MessagesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailpump_messages_skipped_total",
		Help: "Messages skipped as idempotent duplicates.",
	})
	MessagesRetryable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailpump_messages_retryable_total",
		Help: "Messages left for queue redelivery after transient failures.",
	})
	MessagesPermanent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailpump_messages_permanent_total",
		Help: "Messages that failed permanently.",
	})
	MessagesDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailpump_messages_deadlettered_total",
		Help: "Messages routed to the dead-letter queue.",
	})
	SendAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailpump_send_attempts_total",
		Help: "Individual SMTP submission attempts, including retries.",
	})
	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailpump_ratelimit_waits_total",
		Help: "Rate limiter gates that required a delay before sending.",
	})
	CooldownsSet = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailpump_cooldowns_set_total",
		Help: "Domain cooldowns triggered by provider throttling signals.",
	})
	FetchBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailpump_fetch_batches_total",
		Help: "Queue fetch calls that returned at least one message.",
	})
	SendsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mailpump_sends_in_flight",
		Help: "Send tasks currently dispatched by the worker pool.",
	})
)
