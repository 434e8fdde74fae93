package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"

	"github.com/ryoto/vpstrap/internal/domain/entities"
	"github.com/ryoto/vpstrap/internal/domain/interfaces"
)

// maxHashDocument caps the size of a fetched hash-reference document read
// into memory. Checksum listings are tiny; a reference copy of the script
// itself stays on disk and is digested instead.
const maxHashDocument = 1 << 20

// ArtifactFetcher downloads a URL into a caller-owned temporary file.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, url string) (*entities.RemoteArtifact, error)
}

// Digester computes a file's content digest.
type Digester interface {
	Digest(path string) (string, error)
	Equal(a, b string) bool
}

// Executor invokes a script through an interpreter, returning its exit code.
type Executor interface {
	Execute(ctx context.Context, interpreter, scriptPath string, args []string) (int, error)
}

// SignatureVerifier checks a detached signature over a local file.
type SignatureVerifier interface {
	VerifyDetached(ctx context.Context, filePath, sigPath string, cfg *entities.SignatureConfig) error
}

// ChecksumExtractor parses a hash-reference document for the expected
// digest of assetName. A document that is not a checksum listing at all
// fails with an error wrapping entities.ErrNotChecksumListing.
type ChecksumExtractor func(data []byte, assetName string) (string, error)

// RunRequest describes one verified-execution attempt.
type RunRequest struct {
	ScriptURL     string
	HashSourceURL string // optional; empty disables the remote-hash step
	PinnedSHA256  string // optional fallback, hex
	Interpreter   string
	Args          []string
	Signature     *entities.SignatureConfig // optional extra check
	DryRun        bool                      // verify everything, execute nothing
}

// RunReport is returned alongside the error so callers can audit what was
// verified, against what, and whether execution happened.
type RunReport struct {
	ScriptURL    string
	Digest       string
	Expected     entities.HashReference
	Verification entities.VerificationResult
	Executed     bool
	ExitCode     int
}

// TrustedRunner fetches a script from an untrusted URL, establishes an
// expected hash, and executes the script only on an exact match. Every
// temporary artifact it creates is deleted before Run returns, on success
// and on every failure path.
type TrustedRunner struct {
	fetcher     ArtifactFetcher
	digester    Digester
	executor    Executor
	sigVerifier SignatureVerifier
	extract     ChecksumExtractor
	logger      interfaces.Logger
}

// NewTrustedRunner wires the runner. sigVerifier may be nil when no
// installer configures a signature.
func NewTrustedRunner(fetcher ArtifactFetcher, digester Digester, executor Executor, sigVerifier SignatureVerifier, extract ChecksumExtractor, logger interfaces.Logger) *TrustedRunner {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &TrustedRunner{
		fetcher:     fetcher,
		digester:    digester,
		executor:    executor,
		sigVerifier: sigVerifier,
		extract:     extract,
		logger:      logger,
	}
}

// Run executes the verification protocol. The returned report is non-nil
// whenever the script fetch succeeded, even on verification failure.
func (r *TrustedRunner) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	report := &RunReport{
		ScriptURL:    req.ScriptURL,
		Verification: entities.VerificationIndeterminate,
	}

	// Step 1: fetch the script. The artifact never outlives this call.
	script, err := r.fetcher.Fetch(ctx, req.ScriptURL)
	if err != nil {
		return nil, &FetchError{URL: req.ScriptURL, Err: err}
	}
	defer func() {
		_ = os.Remove(script.Path)
	}()

	// Step 2: digest it. Fail closed if the script cannot be hashed.
	digest, err := r.digester.Digest(script.Path)
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrNoDigestAlgorithm, err)
	}
	report.Digest = digest

	// Step 3: establish the expected hash, remote reference first, pinned
	// fallback second.
	expected, err := r.expectedHash(ctx, req)
	if err != nil {
		return report, err
	}
	report.Expected = expected
	if expected.Provenance == entities.ProvenancePinned {
		r.logger.Warn("using pinned fallback hash; update it if upstream legitimately changed",
			interfaces.F("script", req.ScriptURL))
	}

	// Step 4: byte-for-byte digest comparison (case-insensitive hex).
	if !r.digester.Equal(digest, expected.Value) {
		report.Verification = entities.VerificationMismatch
		return report, &ChecksumMismatchError{
			URL:        req.ScriptURL,
			Expected:   expected.Value,
			Actual:     digest,
			Provenance: expected.Provenance,
		}
	}
	report.Verification = entities.VerificationMatch
	r.logger.Info("checksum verified",
		interfaces.F("script", req.ScriptURL),
		interfaces.F("digest", digest),
		interfaces.F("provenance", expected.Provenance))

	// Step 4.5: optional detached-signature check on top of the checksum.
	if req.Signature != nil {
		if err := r.verifySignature(ctx, script.Path, req.Signature); err != nil {
			return report, err
		}
		r.logger.Info("signature verified",
			interfaces.F("script", req.ScriptURL),
			interfaces.F("scheme", req.Signature.Scheme))
	}

	if req.DryRun {
		return report, nil
	}

	// Step 5: only on match, execute with inherited stdio.
	exitCode, err := r.executor.Execute(ctx, req.Interpreter, script.Path, req.Args)
	report.ExitCode = exitCode
	if err != nil {
		return report, &ExecutionError{URL: req.ScriptURL, ExitCode: exitCode, Err: err}
	}
	report.Executed = true
	return report, nil
}

// expectedHash resolves the expected digest: the remote reference document
// when configured and reachable, else the pinned value, else a closed
// failure. A remote document is parsed as a checksum listing; a document
// that is not a checksum listing is treated as a trusted reference copy of
// the script and digested itself.
func (r *TrustedRunner) expectedHash(ctx context.Context, req RunRequest) (entities.HashReference, error) {
	var attempts []Attempt[entities.HashReference]

	if req.HashSourceURL != "" {
		attempts = append(attempts, Attempt[entities.HashReference]{
			Name: "remote hash source",
			Do: func(ctx context.Context) (entities.HashReference, error) {
				return r.remoteHash(ctx, req)
			},
		})
	}
	if req.PinnedSHA256 != "" {
		attempts = append(attempts, Attempt[entities.HashReference]{
			Name: "pinned hash",
			Do: func(_ context.Context) (entities.HashReference, error) {
				return entities.HashReference{
					Value:      req.PinnedSHA256,
					Provenance: entities.ProvenancePinned,
				}, nil
			},
		})
	}

	if len(attempts) == 0 {
		return entities.HashReference{}, ErrNoExpectedHash
	}

	ref, err := FirstSuccess(ctx, attempts)
	if err != nil {
		return entities.HashReference{}, fmt.Errorf("%w: %v", ErrNoExpectedHash, err)
	}
	return ref, nil
}

func (r *TrustedRunner) remoteHash(ctx context.Context, req RunRequest) (entities.HashReference, error) {
	doc, err := r.fetcher.Fetch(ctx, req.HashSourceURL)
	if err != nil {
		return entities.HashReference{}, &FetchError{URL: req.HashSourceURL, Err: err}
	}
	defer func() {
		_ = os.Remove(doc.Path)
	}()

	if doc.Size <= maxHashDocument {
		//nolint:gosec // G304: doc.Path is a temp file this process just created
		data, err := os.ReadFile(doc.Path)
		if err != nil {
			return entities.HashReference{}, fmt.Errorf("failed to read hash document: %w", err)
		}
		value, err := r.extract(data, assetName(req.ScriptURL))
		if err == nil {
			return entities.HashReference{
				Value:      value,
				Provenance: entities.ProvenanceRemote,
			}, nil
		}
		// A listing that lacks an entry for this script is a hard failure;
		// only a document that is not a listing at all is digested as a
		// trusted reference copy.
		if !errors.Is(err, entities.ErrNotChecksumListing) {
			return entities.HashReference{}, fmt.Errorf("hash document: %w", err)
		}
	}

	// Not a checksum listing: digest the reference copy itself.
	value, err := r.digester.Digest(doc.Path)
	if err != nil {
		return entities.HashReference{}, fmt.Errorf("failed to digest reference document: %w", err)
	}
	return entities.HashReference{
		Value:      value,
		Provenance: entities.ProvenanceRemote,
	}, nil
}

// verifySignature fetches the detached signature to a temporary file and
// delegates to the configured scheme. The signature file is removed before
// returning.
func (r *TrustedRunner) verifySignature(ctx context.Context, scriptPath string, cfg *entities.SignatureConfig) error {
	if r.sigVerifier == nil {
		return fmt.Errorf("%w: no signature verifier configured", ErrSignature)
	}

	sig, err := r.fetcher.Fetch(ctx, cfg.SignatureURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, &FetchError{URL: cfg.SignatureURL, Err: err})
	}
	defer func() {
		_ = os.Remove(sig.Path)
	}()

	if err := r.sigVerifier.VerifyDetached(ctx, scriptPath, sig.Path, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return nil
}

// assetName extracts the filename a checksum listing would reference.
func assetName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	return path.Base(u.Path)
}
