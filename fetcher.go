package leapsec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// maxFetchBytes bounds the response body. The published table is a few
	// kilobytes; anything near the limit is not the table.
	maxFetchBytes = 1 << 20

	defaultFetchAttempts = 3
	fetchBackoffBase     = 500 * time.Millisecond
)

// HTTPFetcher retrieves the raw leap-second table over HTTP with bounded
// retry. The table source is low-traffic, rarely-changing infrastructure; a
// transient blip should not hard-fail every pending conversion.
type HTTPFetcher struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
	attempts   int
}

// NewHTTPFetcher creates a fetcher for the given source URL. An empty URL
// selects DefaultSourceURL.
func NewHTTPFetcher(sourceURL string, logger *slog.Logger) *HTTPFetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &HTTPFetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:   logger,
		attempts: defaultFetchAttempts,
	}
}

// SourceURL returns the configured source URL.
func (f *HTTPFetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch performs an HTTP GET for the raw table, retrying failures with
// exponential backoff before giving up.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < f.attempts; attempt++ {
		if attempt > 0 {
			backoff := fetchBackoffBase << (attempt - 1)
			f.logger.Warn("retrying leap-second table fetch",
				"attempt", attempt+1,
				"backoff", backoff.String(),
				"error", lastErr,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := f.fetchOnce(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("fetching leap-second table from %s: %w", f.sourceURL, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxFetchBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxFetchBytes)
	}

	return body, nil
}
