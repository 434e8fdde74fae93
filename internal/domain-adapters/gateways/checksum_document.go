package gateways

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ryoto/vpstrap/internal/domain/entities"
)

const sha256HexLen = 64

// ExtractChecksum pulls the expected SHA-256 digest for assetName out of a
// hash-reference document. Two layouts are accepted: a bare hex digest, or a
// sha256sums-style listing of "<digest>  <filename>" lines. Comment lines
// and blank lines are skipped. In the listing form, a line whose filename
// matches assetName wins; if no filename matches, a listing with exactly one
// digest line is accepted as unambiguous. A document with no digest lines at
// all fails with entities.ErrNotChecksumListing; a listing that lacks an
// entry for assetName fails without it.
func ExtractChecksum(data []byte, assetName string) (string, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("empty document: %w", entities.ErrNotChecksumListing)
	}
	if isHexDigest(text, sha256HexLen) {
		return strings.ToLower(text), nil
	}

	var sole string
	digests := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		digest := fields[0]
		if !isHexDigest(digest, sha256HexLen) {
			continue
		}
		digests++
		sole = digest
		candidate := filepath.Base(strings.TrimPrefix(fields[len(fields)-1], "*"))
		if candidate == assetName {
			return strings.ToLower(digest), nil
		}
	}

	if digests == 1 {
		return strings.ToLower(sole), nil
	}
	if digests == 0 {
		return "", fmt.Errorf("no digest lines: %w", entities.ErrNotChecksumListing)
	}
	return "", fmt.Errorf("checksum for %s not found in listing", assetName)
}

func isHexDigest(value string, expectedLen int) bool {
	if expectedLen > 0 && len(value) != expectedLen {
		return false
	}
	if len(value)%2 != 0 {
		return false
	}
	for _, ch := range value {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}
