package services

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/ryoto/vpstrap/internal/domain/entities"
	"github.com/ryoto/vpstrap/internal/domain/interfaces"
)

// RestrictedRegionCode is the location code that short-circuits
// classification: a single authoritative positive is sufficient, because the
// trace endpoints are operated by one CDN whose restricted-region routing is
// trustworthy.
const RestrictedRegionCode = "CN"

// maxTraceBody caps how much of a trace response is read. Real responses
// are a few hundred bytes of key=value lines.
const maxTraceBody = 64 * 1024

// ProbeFetcher fetches a URL with a forced address family into a temporary
// file owned by the caller.
type ProbeFetcher interface {
	FetchWithMode(ctx context.Context, url string, mode entities.IPMode) (*entities.RemoteArtifact, error)
}

// ProbeResult records the outcome of probing one trace endpoint.
type ProbeResult struct {
	Endpoint entities.TraceEndpoint
	Loc      string
	Err      error
}

// ClassifyResult is the verdict plus the per-endpoint evidence behind it.
type ClassifyResult struct {
	Verdict entities.GeoVerdict
	Probes  []ProbeResult
}

// GeoClassifier decides whether the executing host sits inside the
// restricted network region by walking an ordered list of trace endpoints.
// A positive from any endpoint short-circuits; a negative conclusion
// requires exhausting the whole list, because restricted-region networks
// selectively block individual endpoints.
type GeoClassifier struct {
	endpoints []entities.TraceEndpoint
	fetcher   ProbeFetcher
	ipMode    entities.IPMode
	logger    interfaces.Logger
}

// NewGeoClassifier creates a classifier over the given ordered endpoints.
// ipMode is the operator override: IPMode4 or IPMode6 probes only that
// family, IPModeAuto walks default, then forced-IPv6, then forced-IPv4.
func NewGeoClassifier(endpoints []entities.TraceEndpoint, fetcher ProbeFetcher, ipMode entities.IPMode, logger interfaces.Logger) *GeoClassifier {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &GeoClassifier{
		endpoints: endpoints,
		fetcher:   fetcher,
		ipMode:    ipMode,
		logger:    logger,
	}
}

// Classify runs the endpoint walk. It never returns a hard failure: absence
// of signal degrades to VerdictUnknown, which callers treat per their
// configured policy.
func (c *GeoClassifier) Classify(ctx context.Context) ClassifyResult {
	result := ClassifyResult{Verdict: entities.VerdictUnknown}
	sawNotRestricted := false

	for _, ep := range c.endpoints {
		loc, err := c.probe(ctx, ep)
		result.Probes = append(result.Probes, ProbeResult{Endpoint: ep, Loc: loc, Err: err})

		if err != nil {
			c.logger.Warn("trace endpoint unreachable",
				interfaces.F("endpoint", ep.URL),
				interfaces.F("error", err))
			continue
		}
		if loc == "" {
			c.logger.Warn("trace endpoint returned no loc field",
				interfaces.F("endpoint", ep.URL))
			continue
		}

		if loc == RestrictedRegionCode {
			// One authoritative positive is enough; no further probes.
			result.Verdict = entities.VerdictRestricted
			c.logger.Info("restricted region confirmed",
				interfaces.F("endpoint", ep.URL),
				interfaces.F("loc", loc))
			return result
		}

		// A single negative is not conclusive: other endpoints may be
		// blocked from inside the restricted region, so keep probing.
		sawNotRestricted = true
		c.logger.Debug("endpoint reports non-restricted location",
			interfaces.F("endpoint", ep.URL),
			interfaces.F("loc", loc))
	}

	if sawNotRestricted {
		result.Verdict = entities.VerdictNotRestricted
	} else {
		c.logger.Warn("geo classification degraded: no endpoint produced a location")
	}
	return result
}

// probe fetches one endpoint through the IP-mode ladder and parses its loc
// field. The temporary response file is removed before returning.
func (c *GeoClassifier) probe(ctx context.Context, ep entities.TraceEndpoint) (string, error) {
	var attempts []Attempt[*entities.RemoteArtifact]
	for _, mode := range c.modeLadder() {
		m := mode
		name := "default"
		if m != entities.IPModeAuto {
			name = "ipv" + string(m)
		}
		attempts = append(attempts, Attempt[*entities.RemoteArtifact]{
			Name: name,
			Do: func(ctx context.Context) (*entities.RemoteArtifact, error) {
				return c.fetcher.FetchWithMode(ctx, ep.URL, m)
			},
		})
	}

	artifact, err := FirstSuccess(ctx, attempts)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.Remove(artifact.Path)
	}()

	return parseLoc(artifact.Path)
}

func (c *GeoClassifier) modeLadder() []entities.IPMode {
	switch c.ipMode {
	case entities.IPMode4, entities.IPMode6:
		return []entities.IPMode{c.ipMode}
	default:
		return []entities.IPMode{entities.IPModeAuto, entities.IPMode6, entities.IPMode4}
	}
}

// parseLoc scans line-oriented key=value text for the first loc= field,
// stripping trailing carriage returns.
func parseLoc(path string) (string, error) {
	//nolint:gosec // G304: path is a temp file this process just created
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	scanner := bufio.NewScanner(io.LimitReader(f, maxTraceBody))
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if value, ok := strings.CutPrefix(line, "loc="); ok {
			return strings.TrimSpace(value), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", nil
}
