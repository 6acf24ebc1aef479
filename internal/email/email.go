package email

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrInvalidAddress indicates the address failed validation.
var ErrInvalidAddress = errors.New("invalid email address")

// UnknownDomain is the rate-limit key used for addresses whose domain
// cannot be determined.
const UnknownDomain = "unknown"

// Validate parses and normalises a bare email address, returning the
// lower-cased form.
func Validate(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return strings.ToLower(parsed.Address), nil
}

// Domain returns the domain component of an email address.
func Domain(address string) (string, error) {
	at := strings.LastIndex(address, "@")
	if at == -1 || at == len(address)-1 {
		return "", fmt.Errorf("%w: missing domain", ErrInvalidAddress)
	}

	domain := address[at+1:]
	domain = strings.TrimSuffix(domain, ".")
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain", ErrInvalidAddress)
	}
	if strings.ContainsAny(domain, " \t") {
		return "", fmt.Errorf("%w: whitespace in domain", ErrInvalidAddress)
	}

	return strings.ToLower(domain), nil
}

// DomainOrUnknown returns the lower-cased domain of the address, or
// UnknownDomain when the address is malformed. Rate limiting keys on this
// so that junk recipients still fall under the default per-minute ceiling.
func DomainOrUnknown(address string) string {
	domain, err := Domain(address)
	if err != nil {
		return UnknownDomain
	}
	return domain
}
