// Package probe implements the Network Probe (spec §4.2): page fetch with a
// per-attempt timeout and browser-like user agent, regex-only link
// extraction, host normalization, and the rightward-shift DNS walk.
package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent is sent on every fetch (spec §4.2).
const DefaultUserAgent = "Mozilla/5.0 (compatible; gocrawler/0.1; +https://github.com/bluedotiya/web-crawler)"

// ErrFetchFailed is returned for any transport, DNS, TLS, or non-success
// status outcome. The spec does not distinguish these cases: "the exact
// HTTP status is not inspected."
var ErrFetchFailed = errors.New("probe: fetch failed")

// FetchResult is the only observable output of a successful fetch.
type FetchResult struct {
	Body    string
	Elapsed time.Duration
}

// HTTPDoer is satisfied by *http.Client; tests substitute a stub to
// simulate transport failures without relying on real network timing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher performs the HTTP GET side of the Network Probe.
type Fetcher struct {
	Client    HTTPDoer
	UserAgent string
}

// NewFetcher returns a Fetcher using http.DefaultTransport with no redirect
// policy beyond Go's library default, per spec §4.2.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:    &http.Client{},
		UserAgent: DefaultUserAgent,
	}
}

// Fetch performs a GET against rawURL, bounding the attempt at timeout. On
// any transport, DNS, TLS, or non-2xx/3xx status outcome it returns
// ErrFetchFailed; only the body and elapsed time are observable on success
// (spec §4.2).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, ErrFetchFailed
	}
	req.Header.Set("User-Agent", f.userAgent())

	start := time.Now()
	resp, err := f.client().Do(req)
	if err != nil {
		return FetchResult{}, ErrFetchFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return FetchResult{}, ErrFetchFailed
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, ErrFetchFailed
	}

	return FetchResult{Body: string(body), Elapsed: time.Since(start)}, nil
}

func (f *Fetcher) client() HTTPDoer {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) userAgent() string {
	if f.UserAgent != "" {
		return f.UserAgent
	}
	return DefaultUserAgent
}

// AttemptTimeout returns the per-attempt timeout for the given 0-indexed
// attempt count already recorded on the node, per spec §4.4 step 5:
// 1s on the first try, 2s on the second, 3s on the third.
func AttemptTimeout(attempts int) time.Duration {
	return time.Duration(attempts+1) * time.Second
}
