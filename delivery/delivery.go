// Package delivery is the SMTP transport: a pooled, keep-alive client for
// the configured relay. Connections are recycled after a fixed number of
// messages, TLS 1.2 is the floor, and reply codes survive as typed errors
// so the sender can classify failures.
package delivery

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/textproto"
	"time"
)

// Envelope is one message ready for submission.
type Envelope struct {
	From string
	To   string
	Data []byte
}

// Error carries an SMTP reply code through the pipeline.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("smtp %d: %s", e.Code, e.Msg)
}

// ReplyCode extracts the SMTP reply code from an error chain, or 0 when
// the failure never reached the protocol (dial, TLS, timeout).
func ReplyCode(err error) int {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	var te *textproto.Error
	if errors.As(err, &te) {
		return te.Code
	}
	return 0
}

// Config describes the relay connection.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	HelloName   string
	ImplicitTLS bool

	// DisableSTARTTLS permits plaintext submission to relays without the
	// extension. Off by default: STARTTLS is mandatory when not using
	// implicit TLS.
	DisableSTARTTLS bool

	MaxConnections int
	MaxMessages    int

	ConnectTimeout  time.Duration
	GreetingTimeout time.Duration
	SocketTimeout   time.Duration

	TLS *tls.Config
}

func (c Config) withDefaults() Config {
	if c.MaxConnections < 1 {
		c.MaxConnections = 10
	}
	if c.MaxMessages < 1 {
		c.MaxMessages = 50
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	if c.GreetingTimeout <= 0 {
		c.GreetingTimeout = 10 * time.Second
	}
	if c.SocketTimeout <= 0 {
		c.SocketTimeout = 30 * time.Second
	}
	if c.HelloName == "" {
		c.HelloName = "localhost"
	}
	return c
}

// wrap converts protocol-level failures into *Error while keeping
// transport-level failures (no reply code) as plain wrapped errors.
func wrap(stage string, err error) error {
	var te *textproto.Error
	if errors.As(err, &te) {
		return fmt.Errorf("%s: %w", stage, &Error{Code: te.Code, Msg: te.Msg})
	}
	return fmt.Errorf("%s: %w", stage, err)
}
