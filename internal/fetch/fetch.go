// Package fetch retrieves STAC documents over HTTP with a bounded retry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"example.com/resource-catalogue/internal/stac"
)

const (
	defaultAttempts = 3
	attemptTimeout  = 5 * time.Second
	maxBodyBytes    = 32 << 20
)

// ErrUnavailable is returned once every attempt against a URL has failed.
var ErrUnavailable = errors.New("source unavailable")

// StatusError reports a non-retryable (4xx) answer from the source.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

// Fetcher issues GET requests, retrying transport errors and 5xx answers.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger

	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

// New configures a fetcher with three attempts of five seconds each.
func New(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{},
		logger:     logger,
		Attempts:   defaultAttempts,
		Timeout:    attemptTimeout,
		Backoff:    250 * time.Millisecond,
	}
}

// Fetch returns the body at url. Client errors are returned immediately as
// *StatusError; anything else is retried and ends in ErrUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.Attempts; attempt++ {
		body, err := f.once(ctx, url)
		if err == nil {
			return body, nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, err
		}
		lastErr = err
		f.logger.Warn("source fetch failed", "url", url, "attempt", attempt, "error", err)

		if attempt == f.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, url, ctx.Err())
		case <-time.After(f.Backoff * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, url, lastErr)
}

// Document fetches url and parses it as a STAC document.
func (f *Fetcher) Document(ctx context.Context, url string) (stac.Document, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := stac.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return doc, nil
}

func (f *Fetcher) once(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &StatusError{URL: url, Status: http.StatusBadRequest}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("source responded with %s", resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
