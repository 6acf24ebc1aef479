package queue

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseBodyFields(t *testing.T) {
	msg := Message{
		ID:   "m1",
		Body: `{"to":"User@Example.com","subject":"hi","content":"<p>hello</p>","contentType":"html"}`,
	}
	req, err := ParseSendRequest(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Recipient != "user@example.com" {
		t.Fatalf("expected normalised recipient, got %q", req.Recipient)
	}
	if req.Subject != "hi" || req.Body != "<p>hello</p>" {
		t.Fatalf("unexpected fields: %+v", req)
	}
	if req.ContentKind != KindHTML {
		t.Fatalf("expected html kind, got %q", req.ContentKind)
	}
	if req.QueueMessageID != "m1" {
		t.Fatalf("expected queue message id preserved, got %q", req.QueueMessageID)
	}
}

func TestParseAttributesOverrideBody(t *testing.T) {
	msg := Message{
		Body: `{"to":"body@example.com","subject":"from body","text":"plain"}`,
		Attributes: map[string]string{
			"to":      "attr@example.com",
			"subject": "from attr",
		},
	}
	req, err := ParseSendRequest(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Recipient != "attr@example.com" {
		t.Fatalf("expected attribute recipient to win, got %q", req.Recipient)
	}
	if req.Subject != "from attr" {
		t.Fatalf("expected attribute subject to win, got %q", req.Subject)
	}
	if req.ContentKind != KindText {
		t.Fatalf("expected text kind, got %q", req.ContentKind)
	}
}

func TestParseBodyPrecedence(t *testing.T) {
	msg := Message{
		Body: `{"to":"a@b.com","html":"<b>rich</b>","text":"plain","body":"fallback"}`,
	}
	req, err := ParseSendRequest(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Body != "<b>rich</b>" {
		t.Fatalf("expected html to outrank text/body, got %q", req.Body)
	}
	if req.ContentKind != KindHTML {
		t.Fatalf("expected html inferred from html field, got %q", req.ContentKind)
	}
}

func TestParsePreservesUnknownFields(t *testing.T) {
	msg := Message{
		Body: `{"to":"a@b.com","text":"hi","campaign":"spring","count":3}`,
	}
	req, err := ParseSendRequest(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Metadata["campaign"] != "spring" {
		t.Fatalf("expected campaign metadata, got %v", req.Metadata)
	}
	if req.Metadata["count"] != "3" {
		t.Fatalf("expected stringified count metadata, got %v", req.Metadata)
	}
}

func TestParseFailures(t *testing.T) {
	cases := []Message{
		{Body: `not json at all`},
		{Body: `{"subject":"no recipient","text":"hi"}`},
		{Body: `{"to":"not-an-address","text":"hi"}`},
		{Body: `{"to":"a@b.com"}`},
	}
	for _, msg := range cases {
		if _, err := ParseSendRequest(msg); !errors.Is(err, ErrParse) {
			t.Fatalf("expected ErrParse for body %q, got %v", msg.Body, err)
		}
	}
}

func TestParseNonJSONBodyWithAttributes(t *testing.T) {
	// Attributes alone cannot supply body content, so this still fails.
	msg := Message{
		Body:       "plain text payload",
		Attributes: map[string]string{"to": "a@b.com", "subject": "s"},
	}
	if _, err := ParseSendRequest(msg); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := SendRequest{
		Recipient:   "user@example.com",
		Subject:     "greetings",
		Body:        "<h1>hi</h1>",
		ContentKind: KindHTML,
	}
	raw, err := json.Marshal(map[string]string{
		"to":          original.Recipient,
		"subject":     original.Subject,
		"content":     original.Body,
		"contentType": string(original.ContentKind),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req, err := ParseSendRequest(Message{Body: string(raw)})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.Recipient != original.Recipient || req.Subject != original.Subject ||
		req.Body != original.Body || req.ContentKind != original.ContentKind {
		t.Fatalf("round trip mismatch: %+v vs %+v", req, original)
	}
}

func TestFingerprint(t *testing.T) {
	a := SendRequest{Recipient: "x@y.com", Subject: "hi", Body: "hello"}
	b := SendRequest{Recipient: "x@y.com", Subject: "hi", Body: "hello"}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("identical requests must share a fingerprint")
	}

	c := SendRequest{Recipient: "x@y.com", Subject: "hi", Body: "different"}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("different bodies must differ")
	}

	// Only the first 100 characters of the body participate.
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'a'
	}
	d := SendRequest{Recipient: "x@y.com", Subject: "hi", Body: string(long)}
	e := SendRequest{Recipient: "x@y.com", Subject: "hi", Body: string(long) + "tail"}
	if d.Fingerprint() != e.Fingerprint() {
		t.Fatalf("bodies equal in their first 100 chars must share a fingerprint")
	}
}
