package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ryoto/vpstrap/internal/domain/entities"
)

// fakeProbeFetcher serves canned bodies per URL and counts calls. Bodies
// are written to real temp files because the classifier owns and removes
// them.
type fakeProbeFetcher struct {
	t       *testing.T
	bodies  map[string]string // URL -> body; absent URL means unreachable
	byMode  map[entities.IPMode]map[string]string
	calls   int
	perURL  map[string]int
	created []string
}

func newFakeProbeFetcher(t *testing.T, bodies map[string]string) *fakeProbeFetcher {
	return &fakeProbeFetcher{t: t, bodies: bodies, perURL: make(map[string]int)}
}

func (f *fakeProbeFetcher) FetchWithMode(_ context.Context, url string, mode entities.IPMode) (*entities.RemoteArtifact, error) {
	f.calls++
	f.perURL[url]++

	body, ok := "", false
	if f.byMode != nil {
		body, ok = f.byMode[mode][url]
	}
	if !ok {
		body, ok = f.bodies[url]
	}
	if !ok {
		return nil, errors.New("connection refused")
	}

	path := filepath.Join(f.t.TempDir(), "trace")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		f.t.Fatalf("failed to write fake trace body: %v", err)
	}
	f.created = append(f.created, path)
	return &entities.RemoteArtifact{SourceURL: url, Path: path, Size: int64(len(body))}, nil
}

func endpoints(urls ...string) []entities.TraceEndpoint {
	var eps []entities.TraceEndpoint
	for _, u := range urls {
		eps = append(eps, entities.TraceEndpoint{URL: u})
	}
	return eps
}

func TestGeoClassifier_RestrictedShortCircuits(t *testing.T) {
	fetcher := newFakeProbeFetcher(t, map[string]string{
		"https://a.example/trace": "fl=1\nloc=CN\ncolo=PEK\n",
		"https://b.example/trace": "loc=US\n",
		"https://c.example/trace": "loc=DE\n",
	})
	c := NewGeoClassifier(endpoints("https://a.example/trace", "https://b.example/trace", "https://c.example/trace"),
		fetcher, entities.IPModeAuto, nil)

	result := c.Classify(context.Background())

	if result.Verdict != entities.VerdictRestricted {
		t.Errorf("Verdict = %v, want Restricted", result.Verdict)
	}
	// Short-circuit: nothing after the first CN hit may be probed.
	if fetcher.perURL["https://b.example/trace"] != 0 || fetcher.perURL["https://c.example/trace"] != 0 {
		t.Errorf("endpoints probed after CN hit: %v", fetcher.perURL)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls)
	}
}

func TestGeoClassifier_RestrictedOnLaterEndpoint(t *testing.T) {
	fetcher := newFakeProbeFetcher(t, map[string]string{
		"https://b.example/trace": "loc=CN\n",
	})
	c := NewGeoClassifier(endpoints("https://a.example/trace", "https://b.example/trace", "https://c.example/trace"),
		fetcher, entities.IPModeAuto, nil)

	result := c.Classify(context.Background())

	if result.Verdict != entities.VerdictRestricted {
		t.Errorf("Verdict = %v, want Restricted despite unreachable first endpoint", result.Verdict)
	}
	if fetcher.perURL["https://c.example/trace"] != 0 {
		t.Error("endpoint probed after CN hit")
	}
}

func TestGeoClassifier_AllUnreachableIsUnknown(t *testing.T) {
	fetcher := newFakeProbeFetcher(t, nil)
	c := NewGeoClassifier(endpoints("https://a.example/trace", "https://b.example/trace"),
		fetcher, entities.IPModeAuto, nil)

	result := c.Classify(context.Background())

	if result.Verdict != entities.VerdictUnknown {
		t.Errorf("Verdict = %v, want Unknown", result.Verdict)
	}
	if len(result.Probes) != 2 {
		t.Errorf("probe results = %d, want 2", len(result.Probes))
	}
}

func TestGeoClassifier_NotRestrictedOnlyAfterExhaustingList(t *testing.T) {
	fetcher := newFakeProbeFetcher(t, map[string]string{
		"https://a.example/trace": "loc=US\n",
	})
	c := NewGeoClassifier(endpoints("https://a.example/trace", "https://b.example/trace", "https://c.example/trace"),
		fetcher, entities.IPMode4, nil)

	result := c.Classify(context.Background())

	if result.Verdict != entities.VerdictNotRestricted {
		t.Errorf("Verdict = %v, want NotRestricted", result.Verdict)
	}
	// A negative needs the whole list: unreachable endpoints b and c must
	// still have been attempted.
	for _, url := range []string{"https://b.example/trace", "https://c.example/trace"} {
		if fetcher.perURL[url] == 0 {
			t.Errorf("endpoint %s was not attempted before concluding NotRestricted", url)
		}
	}
}

func TestGeoClassifier_NoLocFieldIsNotAConfirmation(t *testing.T) {
	fetcher := newFakeProbeFetcher(t, map[string]string{
		"https://a.example/trace": "fl=1\ncolo=SJC\n", // reachable, no loc
	})
	c := NewGeoClassifier(endpoints("https://a.example/trace"), fetcher, entities.IPModeAuto, nil)

	result := c.Classify(context.Background())

	if result.Verdict != entities.VerdictUnknown {
		t.Errorf("Verdict = %v, want Unknown when no endpoint yields a loc", result.Verdict)
	}
}

func TestGeoClassifier_ParsesCRLFAndFirstMatch(t *testing.T) {
	fetcher := newFakeProbeFetcher(t, map[string]string{
		"https://a.example/trace": "fl=1\r\nloc=JP\r\nloc=CN\r\n",
	})
	c := NewGeoClassifier(endpoints("https://a.example/trace"), fetcher, entities.IPModeAuto, nil)

	result := c.Classify(context.Background())

	if result.Verdict != entities.VerdictNotRestricted {
		t.Errorf("Verdict = %v, want NotRestricted (first loc= wins, CR stripped)", result.Verdict)
	}
	if result.Probes[0].Loc != "JP" {
		t.Errorf("parsed loc = %q, want JP", result.Probes[0].Loc)
	}
}

func TestGeoClassifier_AutoModeLadderFallsBack(t *testing.T) {
	// Endpoint answers only when forced to IPv4; default and forced-IPv6
	// dials fail.
	fetcher := newFakeProbeFetcher(t, nil)
	fetcher.byMode = map[entities.IPMode]map[string]string{
		entities.IPMode4: {"https://a.example/trace": "loc=FR\n"},
	}
	c := NewGeoClassifier(endpoints("https://a.example/trace"), fetcher, entities.IPModeAuto, nil)

	result := c.Classify(context.Background())

	if result.Verdict != entities.VerdictNotRestricted {
		t.Errorf("Verdict = %v, want NotRestricted via IPv4 fallback", result.Verdict)
	}
	if fetcher.calls != 3 {
		t.Errorf("fetch calls = %d, want 3 (default, forced-6, forced-4)", fetcher.calls)
	}
}

func TestGeoClassifier_ForcedModeSkipsLadder(t *testing.T) {
	fetcher := newFakeProbeFetcher(t, nil)
	c := NewGeoClassifier(endpoints("https://a.example/trace"), fetcher, entities.IPMode6, nil)

	_ = c.Classify(context.Background())

	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (forced mode probes a single family)", fetcher.calls)
	}
}

func TestGeoClassifier_RemovesProbeTempFiles(t *testing.T) {
	fetcher := newFakeProbeFetcher(t, map[string]string{
		"https://a.example/trace": "loc=US\n",
	})
	c := NewGeoClassifier(endpoints("https://a.example/trace"), fetcher, entities.IPModeAuto, nil)

	_ = c.Classify(context.Background())

	for _, path := range fetcher.created {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("probe temp file %s was not removed", path)
		}
	}
}
