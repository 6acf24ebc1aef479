package sender

// Status is the terminal class of one send request. Every request resolves
// to exactly one outcome.
type Status int

const (
	// StatusSent means the relay accepted the message.
	StatusSent Status = iota
	// StatusSkipped means an idempotency hit; no SMTP call was made.
	StatusSkipped
	// StatusRetryable means a transient failure; the queue message is left
	// unacked so the visibility timeout redelivers it.
	StatusRetryable
	// StatusPermanent means the message can never be delivered and belongs
	// in the dead-letter queue.
	StatusPermanent
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusSkipped:
		return "skipped"
	case StatusRetryable:
		return "retryable"
	case StatusPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Outcome reasons.
const (
	ReasonDuplicate = "idempotent_duplicate"
	ReasonTimeout   = "timeout"
)

// Outcome is the result of Sender.Send.
type Outcome struct {
	Status        Status
	SMTPMessageID string
	Attempts      int
	Code          int
	Reason        string
	Err           error
}
