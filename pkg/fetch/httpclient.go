package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// PageResult is a fetched page body plus the metadata the fetchers need to
// classify the outcome.
type PageResult struct {
	StatusCode int
	FinalURL   string // after redirects
	Body       string
}

// HTTPClient wraps retryablehttp with the request defaults the upstream site
// expects.
type HTTPClient struct {
	client *retryablehttp.Client
}

// NewHTTPClient builds a client with transport-level retries for connection
// errors. Application-level retries (empty pages, bad payloads) stay in the
// fallback fetchers.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = nil
	c.HTTPClient.Timeout = timeout
	return &HTTPClient{client: c}
}

// GetPage fetches a URL and returns the body along with the final URL, so
// callers can detect redirects away from the requested resource.
func (h *HTTPClient) GetPage(ctx context.Context, url string) (*PageResult, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	res := &PageResult{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}
	return res, nil
}

// CloseIdleConnections releases pooled transport connections.
func (h *HTTPClient) CloseIdleConnections() {
	h.client.HTTPClient.CloseIdleConnections()
}
