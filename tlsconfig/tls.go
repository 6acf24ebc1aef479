// Package tlsconfig builds the client-side TLS configuration used for
// STARTTLS and implicit-TLS connections to the upstream relay.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Load returns a TLS config pinned to the given server name. TLS 1.2 is the
// floor. SMTP_TLS_CA_FILE adds a private CA to the root pool;
// SMTP_TLS_INSECURE=1 disables verification for test relays.
func Load(serverName string) (*tls.Config, error) {
	conf := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	if caFile := os.Getenv("SMTP_TLS_CA_FILE"); caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("tls: read CA file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("tls: no certificates found in %s", caFile)
		}
		conf.RootCAs = pool
	}

	if os.Getenv("SMTP_TLS_INSECURE") == "1" {
		conf.InsecureSkipVerify = true
	}

	return conf, nil
}
