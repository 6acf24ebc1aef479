package config

import (
	"strings"
	"time"
)

// SMTPConfig describes the upstream relay and the fixed parts of every
// outgoing envelope.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	ImplicitTLS bool
	HelloName   string

	// DisableSTARTTLS permits plaintext submission. Only for relays that
	// genuinely lack the extension.
	DisableSTARTTLS bool

	MaxConnections int
	MaxMessages    int

	ConnectTimeout  time.Duration
	GreetingTimeout time.Duration
	SocketTimeout   time.Duration

	From            string
	ReplyTo         string
	ReturnPath      string
	ListUnsubscribe string
	XMailer         string
	ExtraHeaders    map[string]string
}

// LoadSMTP reads the SMTP transport and header configuration.
func LoadSMTP() SMTPConfig {
	return SMTPConfig{
		Host:        Str("SMTP_HOST", "localhost"),
		Port:        Int("SMTP_PORT", 587, 1),
		Username:    Str("SMTP_USERNAME", ""),
		Password:    Str("SMTP_PASSWORD", ""),
		ImplicitTLS: Bool("SMTP_IMPLICIT_TLS", false),
		HelloName:   Hostname(),

		DisableSTARTTLS: Bool("SMTP_DISABLE_STARTTLS", false),

		MaxConnections: Int("SMTP_MAX_CONNECTIONS", 10, 1),
		MaxMessages:    Int("SMTP_MAX_MESSAGES", 50, 1),

		ConnectTimeout:  Ms("SMTP_CONNECT_TIMEOUT_MS", 15*time.Second),
		GreetingTimeout: Ms("SMTP_GREETING_TIMEOUT_MS", 10*time.Second),
		SocketTimeout:   Ms("SMTP_SOCKET_TIMEOUT_MS", 30*time.Second),

		From:            Str("SMTP_FROM", ""),
		ReplyTo:         Str("SMTP_REPLY_TO", ""),
		ReturnPath:      Str("SMTP_RETURN_PATH", ""),
		ListUnsubscribe: Str("SMTP_LIST_UNSUBSCRIBE", ""),
		XMailer:         Str("SMTP_X_MAILER", "mailpump"),
		ExtraHeaders:    Headers(Str("SMTP_HEADERS", "")),
	}
}

// Headers parses a "Name=Value,Name=Value" list into a header map. Names
// and values are trimmed; entries without '=' are skipped.
func Headers(value string) map[string]string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		name, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		val = strings.TrimSpace(val)
		if name == "" || val == "" {
			continue
		}
		headers[name] = val
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}
