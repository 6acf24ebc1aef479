// Package dkim applies DKIM signatures to outgoing messages when a signing
// key is configured. Signing happens inside the transport, immediately
// before submission, so every retry attempt is signed over its final bytes.
package dkim

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	msgauthdkim "github.com/emersion/go-msgauth/dkim"
)

// Signer holds the key material and canonicalization settings for one
// signing domain. A nil *Signer is valid and signs nothing.
type Signer struct {
	domain     string
	selector   string
	key        crypto.Signer
	headerKeys []string
}

// Domain returns the configured signing domain, if any.
func (s *Signer) Domain() string {
	if s == nil {
		return ""
	}
	return s.domain
}

// LoadFromEnv initialises a Signer from the environment. Returns (nil, nil)
// when no SMTP_DKIM_* variable is set, meaning signing is disabled.
//
// Required: SMTP_DKIM_SELECTOR plus SMTP_DKIM_KEY_PATH or
// SMTP_DKIM_PRIVATE_KEY (PEM). Optional: SMTP_DKIM_DOMAIN, which overrides
// the domain derived from the sender address.
func LoadFromEnv() (*Signer, error) {
	selector := strings.TrimSpace(os.Getenv("SMTP_DKIM_SELECTOR"))
	keyPath := strings.TrimSpace(os.Getenv("SMTP_DKIM_KEY_PATH"))
	inlineKey := os.Getenv("SMTP_DKIM_PRIVATE_KEY")
	domain := strings.TrimSpace(os.Getenv("SMTP_DKIM_DOMAIN"))

	if selector == "" && keyPath == "" && inlineKey == "" && domain == "" {
		return nil, nil
	}
	if selector == "" {
		return nil, fmt.Errorf("dkim: SMTP_DKIM_SELECTOR is required when enabling DKIM")
	}

	var pemData []byte
	switch {
	case inlineKey != "":
		pemData = []byte(inlineKey)
	case keyPath != "":
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("dkim: read private key: %w", err)
		}
		pemData = data
	default:
		return nil, fmt.Errorf("dkim: provide SMTP_DKIM_KEY_PATH or SMTP_DKIM_PRIVATE_KEY")
	}

	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("dkim: parse private key: %w", err)
	}

	return &Signer{
		domain:   domain,
		selector: selector,
		key:      key,
		headerKeys: []string{
			"from",
			"to",
			"subject",
			"date",
			"mime-version",
			"content-type",
			"message-id",
		},
	}, nil
}

// Sign returns the message with a DKIM-Signature header prepended. Messages
// that already carry a signature pass through untouched.
func (s *Signer) Sign(message []byte, from string) ([]byte, error) {
	if s == nil || s.key == nil {
		return message, nil
	}
	if hasSignature(message) {
		return message, nil
	}

	domain := s.domain
	if domain == "" {
		domain = senderDomain(from)
	}
	if domain == "" {
		return nil, fmt.Errorf("dkim: unable to determine signing domain")
	}

	opts := &msgauthdkim.SignOptions{
		Domain:                 domain,
		Selector:               s.selector,
		Signer:                 s.key,
		HeaderCanonicalization: msgauthdkim.CanonicalizationRelaxed,
		BodyCanonicalization:   msgauthdkim.CanonicalizationRelaxed,
		HeaderKeys:             s.headerKeys,
	}

	var signed bytes.Buffer
	if err := msgauthdkim.Sign(&signed, bytes.NewReader(message), opts); err != nil {
		return nil, fmt.Errorf("dkim: signing failed: %w", err)
	}
	return signed.Bytes(), nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			break
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(block.Bytes)
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			if signer, ok := key.(crypto.Signer); ok {
				return signer, nil
			}
			return nil, fmt.Errorf("unsupported private key type in PKCS#8 container")
		}
		pemData = rest
	}
	return nil, fmt.Errorf("no private key found in PEM data")
}

func senderDomain(address string) string {
	address = strings.TrimSpace(address)
	address = strings.Trim(address, "<>")
	if i := strings.LastIndex(address, "@"); i >= 0 && i+1 < len(address) {
		return strings.ToLower(address[i+1:])
	}
	return ""
}

func hasSignature(message []byte) bool {
	upper := bytes.ToUpper(message)
	return bytes.HasPrefix(upper, []byte("DKIM-SIGNATURE:")) ||
		bytes.Contains(upper, []byte("\nDKIM-SIGNATURE:"))
}
