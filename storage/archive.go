// Package storage keeps best-effort on-disk copies of dead-lettered
// payloads for inspection. The dead-letter queue remains the source of
// truth; this archive only aids debugging.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive writes one file per dead-lettered message under dated
// directories. A nil *Archive is valid and saves nothing.
type Archive struct {
	baseDir string
}

// NewArchive returns an archive rooted at dir, or nil when dir is empty
// (archiving disabled).
func NewArchive(dir string) *Archive {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	return &Archive{baseDir: dir}
}

// Save stores the payload as <id>_<recipient-hash>.json under a
// per-day directory.
func (a *Archive) Save(id string, recipient string, body []byte) error {
	if a == nil {
		return nil
	}
	safeID, err := sanitizeComponent(id)
	if err != nil {
		return err
	}
	recipientToken := hashRecipient(recipient)

	dir := filepath.Join(a.baseDir, time.Now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.json", safeID, recipientToken))
	payload := append([]byte(nil), body...)
	return os.WriteFile(filename, payload, 0o600)
}

func sanitizeComponent(v string) (string, error) {
	if strings.ContainsAny(v, "/\\") || strings.Contains(v, "..") {
		return "", errors.New("invalid identifier")
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errors.New("empty identifier")
	}
	return v, nil
}

func hashRecipient(addr string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(addr))))
	return hex.EncodeToString(sum[:8])
}
