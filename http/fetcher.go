// Package http loads remote pages over plain HTTP for the in-memory
// document backend. Pages are not rendered: scripts do not run.
package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/domkit"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// MaxPageSize caps the body read for one page.
const MaxPageSize = 16 << 20

// Fetcher retrieves page markup from URLs.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Fetch returns the markup served at url. A 404 is ENOTFOUND; other
// failures are EUNAVAILABLE.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", domkit.Errorf(domkit.EINVALID, "invalid page URL %q: %v", url, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", domkit.Errorf(domkit.EUNAVAILABLE, "fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", domkit.Errorf(domkit.ENOTFOUND, "page %s not found", url)
	case resp.StatusCode != http.StatusOK:
		return "", domkit.Errorf(domkit.EUNAVAILABLE, "HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPageSize))
	if err != nil {
		return "", domkit.Errorf(domkit.EUNAVAILABLE, "read %s: %v", url, err)
	}

	return string(body), nil
}
