// Package signature dispatches detached-signature checks to the scheme a
// plan configures.
package signature

import (
	"context"
	"fmt"

	"github.com/ryoto/vpstrap/internal/domain/entities"
	"github.com/ryoto/vpstrap/internal/external-adapters/gpg"
	"github.com/ryoto/vpstrap/internal/external-adapters/minisign"
)

// Dispatcher implements the trusted runner's SignatureVerifier contract by
// loading key material per configuration and delegating to the GPG or
// minisign adapter.
type Dispatcher struct{}

// NewDispatcher creates a new dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// VerifyDetached checks sigPath over filePath according to cfg.
func (d *Dispatcher) VerifyDetached(ctx context.Context, filePath, sigPath string, cfg *entities.SignatureConfig) error {
	switch cfg.Scheme {
	case "gpg":
		verifier := gpg.NewVerifier()
		switch {
		case cfg.KeyPath != "":
			if err := verifier.ImportKeyFromFile(cfg.KeyPath); err != nil {
				return err
			}
		case cfg.KeyURL != "":
			if err := verifier.ImportKeysFromURL(ctx, cfg.KeyURL); err != nil {
				return err
			}
		default:
			return fmt.Errorf("gpg signature requires key_path or key_url")
		}
		return verifier.VerifyDetached(filePath, sigPath)

	case "minisign":
		if cfg.KeyPath == "" {
			return fmt.Errorf("minisign signature requires key_path")
		}
		return minisign.NewVerifier().VerifyDetached(filePath, sigPath, cfg.KeyPath)

	default:
		return fmt.Errorf("unsupported signature scheme %q", cfg.Scheme)
	}
}
