package httpxsl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultTimeout is the default timeout for transformation requests.
	DefaultTimeout = 30 * time.Second
)

// Client implements the transform.Transformer interface against an HTTP
// XSL-T service: the source document is POSTed as the request body and
// the stylesheet is selected by query parameter.
type Client struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewClient creates a new transformation HTTP client.
func NewClient(baseURL string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}

	return &Client{
		baseURL: baseURL,
		client:  httpClient,
		log:     log,
	}
}

// Transform applies the named stylesheet to source and returns the
// transformed document.
func (c *Client) Transform(ctx context.Context, source []byte, stylesheet string) ([]byte, error) {
	if stylesheet == "" {
		return nil, fmt.Errorf("stylesheet name is required")
	}

	apiURL, err := url.Parse(c.baseURL + "/transform")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	query := apiURL.Query()
	query.Set("stylesheet", stylesheet)
	apiURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL.String(), bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/xml")

	c.log.Debug("Requesting transformation", "stylesheet", stylesheet, "source_bytes", len(source))

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("Transformation request failed", "error", err, "stylesheet", stylesheet)
		return nil, fmt.Errorf("transformation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Transformation service returned non-200 status",
			"status", resp.StatusCode, "stylesheet", stylesheet, "body", string(body))
		return nil, fmt.Errorf("transformation service returned status %d", resp.StatusCode)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("transformation service returned empty document")
	}

	return body, nil
}
