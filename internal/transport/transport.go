// Package transport delivers request envelopes to the Enginesis service.
// The dispatcher treats a Sender error as a connectivity failure; an HTTP
// error status is not a Sender error, the body travels back up so the
// response layer can classify it.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, serviceURL string, params url.Values) ([]byte, error)
}

type HTTPSender struct {
	inner *http.Client
}

func NewHTTPSender(timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSender{inner: &http.Client{Timeout: timeout}}
}

// Send POSTs the form-encoded envelope. When the endpoint refuses POST it
// falls back once to GET with the same parameters on the query string.
func (c *HTTPSender) Send(ctx context.Context, serviceURL string, params url.Values) ([]byte, error) {
	body, status, err := c.post(ctx, serviceURL, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusMethodNotAllowed {
		return c.get(ctx, serviceURL, params)
	}
	return body, nil
}

func (c *HTTPSender) post(ctx context.Context, serviceURL string, params url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serviceURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, resp.StatusCode, readErr
	}
	return body, resp.StatusCode, nil
}

func (c *HTTPSender) get(ctx context.Context, serviceURL string, params url.Values) ([]byte, error) {
	sep := "?"
	if strings.Contains(serviceURL, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL+sep+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
