package sender

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math"
	mathrand "math/rand"
	"mime"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"mailpump/internal/email"
	"mailpump/queue"
)

const (
	messageIDTokenLen = 12
	dateJitterRange   = 30 * time.Second
)

const alphanumerics = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomToken returns n random alphanumeric characters.
func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; degrade to a
		// clock-derived token rather than panic mid-send.
		return fmt.Sprintf("%0*d", n, time.Now().UnixNano()%int64(math.Pow10(n)))
	}
	for i, b := range buf {
		buf[i] = alphanumerics[int(b)%len(alphanumerics)]
	}
	return string(buf)
}

// newMessageID builds a Message-ID unique per attempt:
// <unix-millis.token@sender-domain>.
func newMessageID(now time.Time, senderDomain string) string {
	return fmt.Sprintf("<%d.%s@%s>", now.UnixMilli(), randomToken(messageIDTokenLen), senderDomain)
}

// jitteredDate formats the Date header in RFC 2822 form with a uniform
// ±30s perturbation, defeating exact-timestamp pattern detection.
func jitteredDate(now time.Time) string {
	jitter := time.Duration(mathrand.Int63n(int64(2*dateJitterRange))) - dateJitterRange
	return now.Add(jitter).UTC().Format(time.RFC1123Z)
}

// encodeSubject Q-encodes the subject when it leaves ASCII.
func encodeSubject(subject string) string {
	return mime.QEncoding.Encode("UTF-8", subject)
}

// buildMessage assembles the full outgoing message for one attempt and
// returns it with its Message-ID. HTML content always goes out as
// multipart/alternative with a synthesized plain-text part.
func buildMessage(req queue.SendRequest, cfg Config, now time.Time) ([]byte, string, error) {
	senderDomain := email.DomainOrUnknown(cfg.From)
	messageID := newMessageID(now, senderDomain)

	var buf bytes.Buffer
	header := func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}

	header("From", cfg.From)
	header("To", req.Recipient)
	if req.Subject != "" {
		header("Subject", encodeSubject(req.Subject))
	}
	header("Message-ID", messageID)
	header("Date", jitteredDate(now))
	header("MIME-Version", "1.0")
	if cfg.XMailer != "" {
		header("X-Mailer", cfg.XMailer)
	}
	if cfg.ReplyTo != "" {
		header("Reply-To", cfg.ReplyTo)
	}
	if cfg.ReturnPath != "" {
		header("Return-Path", cfg.ReturnPath)
	}
	if cfg.ListUnsubscribe != "" {
		header("List-Unsubscribe", cfg.ListUnsubscribe)
		header("List-Unsubscribe-Post", "List-Unsubscribe=One-Click")
	}
	for _, name := range sortedKeys(cfg.ExtraHeaders) {
		header(name, cfg.ExtraHeaders[name])
	}

	if req.ContentKind == queue.KindHTML {
		if err := writeMultipart(&buf, header, req.Body); err != nil {
			return nil, "", err
		}
	} else {
		header("Content-Type", `text/plain; charset=UTF-8`)
		buf.WriteString("\r\n")
		buf.WriteString(toCRLF(req.Body))
	}

	return buf.Bytes(), messageID, nil
}

// writeMultipart emits a multipart/alternative body: plain-text fallback
// first, HTML second.
func writeMultipart(buf *bytes.Buffer, header func(name, value string), htmlBody string) error {
	writer := multipart.NewWriter(buf)
	if err := writer.SetBoundary("b" + randomToken(24)); err != nil {
		return fmt.Errorf("set boundary: %w", err)
	}
	header("Content-Type", `multipart/alternative; boundary="`+writer.Boundary()+`"`)
	buf.WriteString("\r\n")

	text, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/plain; charset=UTF-8`},
	})
	if err != nil {
		return fmt.Errorf("text part: %w", err)
	}
	if _, err := text.Write([]byte(toCRLF(htmlToText(htmlBody)))); err != nil {
		return fmt.Errorf("text part write: %w", err)
	}

	html, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset=UTF-8`},
	})
	if err != nil {
		return fmt.Errorf("html part: %w", err)
	}
	if _, err := html.Write([]byte(toCRLF(htmlBody))); err != nil {
		return fmt.Errorf("html part write: %w", err)
	}

	return writer.Close()
}

func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
