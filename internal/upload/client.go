package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/healthmerge/internal/ingest"
)

// maxAttempts bounds SendArchive retries.
const maxAttempts = 3

// Client sends export archives to the healthmerge server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the healthmerge server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		backoff: time.Second,
	}
}

// StatusError is a non-200 answer from the server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("import failed (status %d): %s", e.Code, e.Body)
}

// retryable reports whether another attempt could succeed. Client errors
// other than rate limiting will not change on retry.
func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// SendArchive POSTs a zip archive to the server's import endpoint.
// Retries up to 3 times with exponential backoff on transport errors and
// server errors.
func (c *Client) SendArchive(ctx context.Context, archive []byte, sourceID string) (*ingest.Result, error) {
	target := c.serverURL + "/api/v1/import"
	if sourceID != "" {
		target += "?source=" + url.QueryEscape(sourceID)
	}

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		result, err := c.post(ctx, target, archive)
		if err == nil {
			return result, nil
		}
		lastErr = err
		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, target string, archive []byte) (*ingest.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/zip")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var result ingest.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding import result: %w", err)
	}
	return &result, nil
}
