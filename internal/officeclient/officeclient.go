// Package officeclient implements the external office-converter RPC
// the office-document plan calls: POST the source bytes and mime, get
// PDF bytes back. A small per-process HTTP client wrapping a single
// external POST endpoint, with retry on 429/503.
package officeclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docbox-nz/docbox/internal/pipeline"
)

// retryDelays is the fixed backoff schedule for
// transient 429/503 responses from an external conversion service.
var retryDelays = []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

// Client POSTs a file's bytes to an external office-to-PDF converter
// and returns the PDF bytes, implementing pipeline.OfficeConverter.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client against baseURL (the converter's /convert
// endpoint root). An empty baseURL produces a Client whose calls
// always fail with ErrNotConfigured, so a deployment without an office
// converter degrades office-document derivation rather than panicking.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ErrNotConfigured is returned when no converter endpoint was configured.
var ErrNotConfigured = fmt.Errorf("officeclient: no converter endpoint configured")

var _ pipeline.OfficeConverter = (*Client)(nil)

// ConvertToPDF implements pipeline.OfficeConverter.
func (c *Client) ConvertToPDF(ctx context.Context, data []byte, sourceMime string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelays[attempt-1]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		pdf, status, err := c.post(ctx, data, sourceMime)
		if err == nil {
			return pdf, nil
		}
		lastErr = err
		if !isRetryableStatus(status) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("officeclient.ConvertToPDF: exhausted retries: %w", lastErr)
}

func (c *Client) post(ctx context.Context, data []byte, sourceMime string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("officeclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", sourceMime)
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("officeclient: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("officeclient: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("officeclient: converter returned %d: %s", resp.StatusCode, string(body))
	}
	return body, resp.StatusCode, nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}
