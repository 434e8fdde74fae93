package services

import (
	"errors"
	"fmt"

	"github.com/ryoto/vpstrap/internal/domain/entities"
)

// Sentinel errors for verification ambiguities. All of them fail closed:
// an unverifiable script is never executed.
var (
	// ErrNoDigestAlgorithm means the script's digest could not be computed.
	ErrNoDigestAlgorithm = errors.New("cannot compute script digest")
	// ErrNoExpectedHash means neither the remote reference nor a pinned
	// value yielded an expected hash.
	ErrNoExpectedHash = errors.New("no expected hash obtainable")
	// ErrSignature means the detached-signature check failed.
	ErrSignature = errors.New("signature verification failed")
)

// FetchError wraps a download failure, naming the URL involved so an
// operator can tell flaky networking from tampered content.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ChecksumMismatchError reports both digests and the provenance of the
// expectation, so the operator can distinguish tampering from a stale
// pinned hash.
type ChecksumMismatchError struct {
	URL        string
	Expected   string
	Actual     string
	Provenance entities.HashProvenance
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s (%s), got %s",
		e.URL, e.Expected, e.Provenance, e.Actual)
}

// ExecutionError reports a verified script that could not be invoked or
// exited non-zero. It is not a verification failure: callers decide whether
// the installer was optional.
type ExecutionError struct {
	URL      string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of %s failed (exit %d): %v", e.URL, e.ExitCode, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
