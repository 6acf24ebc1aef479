package email

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	got, err := Validate(" User@Example.COM ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user@example.com" {
		t.Fatalf("expected normalised address, got %q", got)
	}

	if _, err := Validate("not-an-address"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := Validate(""); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for empty input, got %v", err)
	}
}

func TestDomain(t *testing.T) {
	got, err := Domain("user@Example.Com.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "example.com" {
		t.Fatalf("expected example.com, got %q", got)
	}

	for _, bad := range []string{"user@", "user", "user@ bad.com", ""} {
		if _, err := Domain(bad); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("expected ErrInvalidAddress for %q, got %v", bad, err)
		}
	}
}

func TestDomainOrUnknown(t *testing.T) {
	if got := DomainOrUnknown("a@X.com"); got != "x.com" {
		t.Fatalf("expected x.com, got %q", got)
	}
	if got := DomainOrUnknown("no-at-sign"); got != UnknownDomain {
		t.Fatalf("expected %q, got %q", UnknownDomain, got)
	}
}
