package sender

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"regexp"
	"strings"
	"testing"
	"time"

	"mailpump/queue"
)

var messageIDPattern = regexp.MustCompile(`^<\d+\.[A-Za-z0-9]{12}@example\.com>$`)

func testSenderConfig() Config {
	return Config{
		From:            "news@example.com",
		XMailer:         "mailpump",
		ListUnsubscribe: "<https://example.com/unsub>",
		ReplyTo:         "replies@example.com",
	}
}

func TestBuildMessageTextHeaders(t *testing.T) {
	req := queue.SendRequest{
		Recipient:   "user@example.net",
		Subject:     "hello",
		Body:        "plain body",
		ContentKind: queue.KindText,
	}
	now := time.Now()

	data, messageID, err := buildMessage(req, testSenderConfig(), now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !messageIDPattern.MatchString(messageID) {
		t.Fatalf("unexpected Message-ID format: %q", messageID)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	if msg.Header.Get("From") != "news@example.com" {
		t.Fatalf("unexpected From: %q", msg.Header.Get("From"))
	}
	if msg.Header.Get("To") != "user@example.net" {
		t.Fatalf("unexpected To: %q", msg.Header.Get("To"))
	}
	if msg.Header.Get("Message-Id") != messageID && msg.Header.Get("Message-ID") != messageID {
		t.Fatalf("Message-ID header mismatch")
	}
	if msg.Header.Get("MIME-Version") != "1.0" {
		t.Fatalf("missing MIME-Version")
	}
	if msg.Header.Get("List-Unsubscribe-Post") != "List-Unsubscribe=One-Click" {
		t.Fatalf("missing one-click unsubscribe header")
	}

	date, err := msg.Header.Date()
	if err != nil {
		t.Fatalf("parse Date: %v", err)
	}
	if diff := date.Sub(now); diff < -31*time.Second || diff > 31*time.Second {
		t.Fatalf("Date jitter out of range: %v", diff)
	}

	body, _ := io.ReadAll(msg.Body)
	if !strings.Contains(string(body), "plain body") {
		t.Fatalf("body missing content: %q", body)
	}
}

func TestBuildMessageUniquePerAttempt(t *testing.T) {
	req := queue.SendRequest{Recipient: "u@d.com", Body: "x", ContentKind: queue.KindText}
	_, first, err := buildMessage(req, testSenderConfig(), time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, second, err := buildMessage(req, testSenderConfig(), time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if first == second {
		t.Fatalf("Message-ID must be unique per attempt")
	}
}

func TestBuildMessageMultipart(t *testing.T) {
	req := queue.SendRequest{
		Recipient:   "user@example.net",
		Subject:     "rich",
		Body:        "<style>p{}</style><p>Hello <b>there</b></p>",
		ContentKind: queue.KindHTML,
	}

	data, _, err := buildMessage(req, testSenderConfig(), time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/alternative" {
		t.Fatalf("expected multipart/alternative, got %q", mediaType)
	}

	reader := multipart.NewReader(msg.Body, params["boundary"])

	textPart, err := reader.NextPart()
	if err != nil {
		t.Fatalf("text part: %v", err)
	}
	textBody, _ := io.ReadAll(textPart)
	if !strings.Contains(string(textBody), "Hello there") {
		t.Fatalf("text alternative missing stripped content: %q", textBody)
	}
	if strings.Contains(string(textBody), "<b>") {
		t.Fatalf("text alternative contains markup: %q", textBody)
	}

	htmlPart, err := reader.NextPart()
	if err != nil {
		t.Fatalf("html part: %v", err)
	}
	htmlBody, _ := io.ReadAll(htmlPart)
	if !strings.Contains(string(htmlBody), "<b>there</b>") {
		t.Fatalf("html part missing markup: %q", htmlBody)
	}
}

func TestEncodeSubject(t *testing.T) {
	if got := encodeSubject("plain subject"); got != "plain subject" {
		t.Fatalf("ascii subject must pass through, got %q", got)
	}
	encoded := encodeSubject("héllo")
	if !strings.HasPrefix(encoded, "=?UTF-8?q?") {
		t.Fatalf("expected Q-encoded subject, got %q", encoded)
	}
}

func TestRandomTokenAlphanumeric(t *testing.T) {
	token := randomToken(messageIDTokenLen)
	if len(token) != messageIDTokenLen {
		t.Fatalf("unexpected token length %d", len(token))
	}
	for _, r := range token {
		if !strings.ContainsRune(alphanumerics, r) {
			t.Fatalf("non-alphanumeric rune %q in token", r)
		}
	}
}
