package timetrack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultFeedURL is the live time-track feed. It is not configurable at runtime.
const DefaultFeedURL = "https://www.ttrack.info/api/timetrack/json/"

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// ErrUnexpectedStatus is returned when the feed answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected feed status")

// Fetcher defines the interface for retrieving the raw feed body.
type Fetcher interface {
	FetchBody(ctx context.Context) (string, error)
}

// Client implements Fetcher over HTTP.
type Client struct {
	feedURL string
	client  *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		feedURL: url,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchBody issues a single GET and returns the whole response body.
func (c *Client) FetchBody(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a bounded excerpt for error context
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(excerpt))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	return string(body), nil
}
