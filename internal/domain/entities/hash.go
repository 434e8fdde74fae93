package entities

import "errors"

// ErrNotChecksumListing reports a hash-reference document that does not
// parse as a checksum listing at all. Callers may treat such a document as
// a trusted reference copy of the artifact instead. A document that is a
// listing but lacks an entry for the asset does not carry this error.
var ErrNotChecksumListing = errors.New("document is not a checksum listing")

// HashProvenance records where an expected checksum came from.
type HashProvenance int

const (
	// ProvenanceRemote means the hash was obtained live from a
	// maintainer-controlled reference URL.
	ProvenanceRemote HashProvenance = iota
	// ProvenancePinned means a fallback constant from configuration was
	// used because the remote reference was unreachable or not configured.
	// Pinned hashes can go stale when upstream legitimately changes.
	ProvenancePinned
)

// String returns a human-readable provenance name.
func (p HashProvenance) String() string {
	if p == ProvenancePinned {
		return "pinned"
	}
	return "remote"
}

// HashReference is an expected checksum tagged with its provenance.
type HashReference struct {
	Value      string // lowercase hex digest
	Provenance HashProvenance
}

// VerificationResult is the outcome of comparing an artifact's digest
// against its expected hash.
type VerificationResult int

const (
	// VerificationIndeterminate means no expected hash could be obtained or
	// no digest could be computed. Blocks execution, but is logged
	// differently from a mismatch.
	VerificationIndeterminate VerificationResult = iota
	// VerificationMatch is the only result that permits execution.
	VerificationMatch
	// VerificationMismatch means the content does not match expectation.
	VerificationMismatch
)

// String returns a human-readable result name.
func (r VerificationResult) String() string {
	switch r {
	case VerificationMatch:
		return "match"
	case VerificationMismatch:
		return "mismatch"
	default:
		return "indeterminate"
	}
}
