package tlsconfig

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SMTP_TLS_CA_FILE", "")
	t.Setenv("SMTP_TLS_INSECURE", "")

	conf, err := Load("relay.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conf.ServerName != "relay.example.com" {
		t.Fatalf("unexpected server name %q", conf.ServerName)
	}
	if conf.MinVersion != tls.VersionTLS12 {
		t.Fatalf("expected TLS 1.2 floor, got %x", conf.MinVersion)
	}
	if conf.InsecureSkipVerify {
		t.Fatalf("verification must be on by default")
	}
}

func TestLoadInsecure(t *testing.T) {
	t.Setenv("SMTP_TLS_INSECURE", "1")
	conf, err := Load("relay.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conf.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify")
	}
}

func TestLoadBadCAFile(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(junk, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("write junk CA: %v", err)
	}
	t.Setenv("SMTP_TLS_CA_FILE", junk)

	if _, err := Load("relay.test"); err == nil {
		t.Fatalf("expected error for junk CA file")
	}
}
