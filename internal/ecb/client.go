package ecb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultFeedURL is the ECB's full historical reference-rate feed.
const DefaultFeedURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-hist.xml"

// DefaultTimeout bounds a single feed download.
const DefaultTimeout = 30 * time.Second

// ErrHTTP wraps an HTTP error status from the feed host.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Client downloads the raw feed.
type Client struct {
	url  string
	http *http.Client
}

// NewClient builds a feed client. An empty url selects DefaultFeedURL and a
// zero timeout selects DefaultTimeout.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultFeedURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// URL returns the configured feed location.
func (c *Client) URL() string { return c.url }

// FetchHistory downloads the feed and returns its bytes verbatim, so the
// snapshot written to disk matches the wire exactly.
func (c *Client) FetchHistory(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return data, nil
}
