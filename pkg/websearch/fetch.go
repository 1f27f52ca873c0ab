package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openprobe/deepsearch/pkg/retry"
)

// fetchUserAgent identifies page fetches to origin servers.
const fetchUserAgent = "Mozilla/5.0 (compatible; deepsearch/1.0; +https://github.com/openprobe/deepsearch)"

// Fetcher retrieves source pages with bounded size, redirects, and
// retries.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	retryCfg retry.Config
}

// NewFetcher creates a page fetcher. timeout bounds each attempt and
// the whole retry envelope; maxBytes caps the body size.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	transport := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		retryCfg: retry.Config{
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			MaxElapsedTime:  timeout,
		},
	}
}

// Fetch retrieves the page body. Network errors, 5xx and 429 are
// retried within the envelope; other 4xx statuses and oversized bodies
// fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, f.retryCfg, func() error {
		b, err := f.fetchOnce(ctx, urlStr)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

func (f *Fetcher) fetchOnce(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("fetch %s: HTTP %d", urlStr, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", urlStr, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, retry.Permanent(fmt.Errorf("fetch %s: body exceeds %d bytes", urlStr, f.maxBytes))
	}
	return body, nil
}
