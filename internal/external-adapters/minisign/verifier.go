// Package minisign provides minisign signature verification capabilities.
package minisign

import (
	"fmt"
	"os"

	"github.com/jedisct1/go-minisign"
)

// Verifier checks minisign signatures over installer scripts.
type Verifier struct{}

// NewVerifier creates a new minisign verifier
func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyDetached verifies a minisign signature file against a data file
// using the public key at keyPath.
func (v *Verifier) VerifyDetached(dataPath, sigPath, keyPath string) error {
	pubKey, err := minisign.NewPublicKeyFromFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read minisign public key: %w", err)
	}

	sig, err := minisign.NewSignatureFromFile(sigPath)
	if err != nil {
		return fmt.Errorf("failed to read minisign signature: %w", err)
	}

	//nolint:gosec // G304: dataPath is a temp file the pipeline just fetched
	data, err := os.ReadFile(dataPath)
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}

	valid, err := pubKey.Verify(data, sig)
	if err != nil {
		return fmt.Errorf("minisign verification error: %w", err)
	}
	if !valid {
		return fmt.Errorf("minisign signature verification failed")
	}
	return nil
}
