package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"mailpump/internal/email"
)

// ErrParse marks a message whose payload cannot be turned into a send
// request. The drainer routes such messages to the dead-letter queue.
var ErrParse = errors.New("unparsable message payload")

// ContentKind distinguishes HTML from plain-text bodies.
type ContentKind string

const (
	KindHTML ContentKind = "html"
	KindText ContentKind = "text"
)

// SendRequest is the decoded payload of one queue message.
type SendRequest struct {
	Recipient   string
	Subject     string
	Body        string
	ContentKind ContentKind
	Metadata    map[string]string

	QueueMessageID string
	ReceiptHandle  string
}

// Fingerprint returns the idempotency key: SHA-256 over
// recipient:subject:first-100-chars(body).
func (r SendRequest) Fingerprint() string {
	body := r.Body
	if runes := []rune(body); len(runes) > 100 {
		body = string(runes[:100])
	}
	sum := sha256.Sum256([]byte(r.Recipient + ":" + r.Subject + ":" + body))
	return hex.EncodeToString(sum[:])
}

// payload field names consumed by the parser; everything else is preserved
// into Metadata.
var knownFields = map[string]bool{
	"to":          true,
	"subject":     true,
	"content":     true,
	"html":        true,
	"text":        true,
	"body":        true,
	"contentType": true,
}

// ParseSendRequest decodes a queue message. The body is JSON; message
// attributes "to" and "subject" override their body counterparts. Body
// content resolves in the order content, html, text, body. A malformed or
// incomplete payload fails with ErrParse.
func ParseSendRequest(msg Message) (SendRequest, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(msg.Body), &fields); err != nil {
		// Not JSON: field lookups below fall through to attributes.
		fields = nil
	}

	recipient := firstOf(msg.Attributes["to"], str(fields["to"]))
	subject := firstOf(msg.Attributes["subject"], str(fields["subject"]))
	body := firstOf(str(fields["content"]), str(fields["html"]), str(fields["text"]), str(fields["body"]))

	recipient, err := email.Validate(recipient)
	if err != nil {
		return SendRequest{}, fmt.Errorf("%w: recipient: %v", ErrParse, err)
	}
	if body == "" {
		return SendRequest{}, fmt.Errorf("%w: no body content", ErrParse)
	}

	kind := KindText
	switch str(fields["contentType"]) {
	case string(KindHTML):
		kind = KindHTML
	case string(KindText):
		kind = KindText
	default:
		if str(fields["html"]) != "" {
			kind = KindHTML
		}
	}

	var metadata map[string]string
	for name, value := range fields {
		if knownFields[name] {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata[name] = stringify(value)
	}

	return SendRequest{
		Recipient:      recipient,
		Subject:        subject,
		Body:           body,
		ContentKind:    kind,
		Metadata:       metadata,
		QueueMessageID: msg.ID,
		ReceiptHandle:  msg.ReceiptHandle,
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
