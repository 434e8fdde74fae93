package gateways

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Hasher computes streamed SHA-256 digests of local files.
// Pure Go implementation - no external sha256sum binary needed.
type Hasher struct{}

// NewHasher creates a new hasher
func NewHasher() *Hasher {
	return &Hasher{}
}

// Digest returns the lowercase hex SHA-256 of the exact bytes at path.
// The file is streamed, so arbitrarily large inputs are fine. The input is
// never modified or deleted.
func (h *Hasher) Digest(path string) (string, error) {
	//nolint:gosec // G304: File path is caller-provided for digest computation
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(sum.Sum(nil)), nil
}

// Equal compares two hex digests case-insensitively.
func (h *Hasher) Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
