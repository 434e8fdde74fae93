// Package gateways implements the network and process adapters the
// bootstrap pipeline depends on.
package gateways

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/ryoto/vpstrap/internal/domain/entities"
)

const userAgent = "vpstrap/1.0"

// Fetcher downloads URLs into freshly created, exclusively-owned temporary
// files. The caller owns the returned file and is responsible for deleting
// it; on failure no partial file is left behind.
type Fetcher struct {
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	allowHTTP bool
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.timeout = d }
}

// WithRetries sets the retry budget and the fixed backoff between attempts.
func WithRetries(retries int, backoff time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.retries = retries
		f.backoff = backoff
	}
}

// AllowHTTP permits plain-HTTP URLs. HTTPS-only is the default.
func AllowHTTP() FetcherOption {
	return func(f *Fetcher) { f.allowHTTP = true }
}

// NewFetcher creates a fetcher tuned for installer downloads: a long
// per-attempt timeout and a short fixed-backoff retry budget.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		timeout: 5 * time.Minute,
		retries: 2,
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewProbeFetcher creates a fetcher tuned for geo probes: a short timeout
// and no retries, so an unreachable endpoint fails fast.
func NewProbeFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		timeout: 8 * time.Second,
		retries: 0,
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url into a temporary file using the platform's default
// address family.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*entities.RemoteArtifact, error) {
	return f.FetchWithMode(ctx, rawURL, entities.IPModeAuto)
}

// FetchWithMode downloads url into a temporary file, dialing with the given
// address family. IPModeAuto uses the platform default; IPMode4/IPMode6
// force tcp4/tcp6.
func (f *Fetcher) FetchWithMode(ctx context.Context, rawURL string, mode entities.IPMode) (*entities.RemoteArtifact, error) {
	if err := f.checkScheme(rawURL); err != nil {
		return nil, err
	}

	client := f.clientFor(mode)

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff):
			}
		}

		artifact, err := f.fetchOnce(ctx, client, rawURL)
		if err == nil {
			return artifact, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func (f *Fetcher) checkScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %s: %w", rawURL, err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if f.allowHTTP {
			return nil
		}
		return fmt.Errorf("plain HTTP refused for %s (HTTPS required)", rawURL)
	default:
		return fmt.Errorf("unsupported URL scheme %q in %s", u.Scheme, rawURL)
	}
}

// clientFor builds an HTTP client whose dialer is pinned to the requested
// address family.
func (f *Fetcher) clientFor(mode entities.IPMode) *http.Client {
	network := "tcp"
	switch mode {
	case entities.IPMode4:
		network = "tcp4"
	case entities.IPMode6:
		network = "tcp6"
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}

	return &http.Client{
		Timeout:   f.timeout,
		Transport: transport,
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, client *http.Client, rawURL string) (*entities.RemoteArtifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	out, err := os.CreateTemp("", "vpstrap-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		// No partial file is left behind on failure.
		_ = os.Remove(out.Name())
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	return &entities.RemoteArtifact{
		SourceURL: rawURL,
		Path:      out.Name(),
		Size:      written,
	}, nil
}
