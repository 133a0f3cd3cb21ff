package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/healthmerge/internal/models"
	"github.com/claude/healthmerge/internal/storage"
	"github.com/claude/healthmerge/internal/store"
)

// HTTPClient implements DataSource by calling the healthmerge REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// may be empty when the server is reached over the tailnet.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) LoadData(ctx context.Context) (models.HealthData, error) {
	var data models.HealthData
	if err := c.get(ctx, "/api/v1/data", nil, &data); err != nil {
		return models.HealthData{}, err
	}
	data.HealthMetrics = data.HealthMetrics.Normalized()
	return data, nil
}

func (c *HTTPClient) Sources(ctx context.Context) ([]store.SourceSummary, error) {
	var sources []store.SourceSummary
	if err := c.get(ctx, "/api/v1/sources", nil, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func (c *HTTPClient) QueryImportLogs(ctx context.Context, limit int) ([]storage.ImportLog, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var logs []storage.ImportLog
	if err := c.get(ctx, "/api/v1/imports", params, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
