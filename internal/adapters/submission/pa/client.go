package pa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxSendAttempts = 2

// Client submits rendered documents to the platform import API. It
// implements the submission.Submitter interface.
type Client struct {
	enabled        bool
	baseURL        string
	importEndpoint string
	timeout        time.Duration
	auth           *AuthManager
	httpClient     HTTPClient
	breaker        *Breaker
	limiter        *Limiter
	log            *slog.Logger
}

// importRequest represents the platform import payload.
type importRequest struct {
	Format      string   `json:"format"`
	Content     string   `json:"content"`
	PostActions []string `json:"postActions"`
}

// NewClient creates a new platform submission client. When enabled is
// false every Send call is a no-op success, matching the validate-only
// and local processing modes.
func NewClient(enabled bool, baseURL, importEndpoint string, timeout time.Duration, auth *AuthManager, httpClient HTTPClient, log *slog.Logger) *Client {
	return &Client{
		enabled:        enabled,
		baseURL:        baseURL,
		importEndpoint: importEndpoint,
		timeout:        timeout,
		auth:           auth,
		httpClient:     httpClient,
		log:            log,
	}
}

// Protect installs a breaker and limiter around Send. Either may be nil.
func (c *Client) Protect(breaker *Breaker, limiter *Limiter) {
	c.breaker = breaker
	c.limiter = limiter
}

// Send submits one document. The content is base64-encoded into a JSON
// import request with a Bearer token. At most two attempts are made: a
// 401 on the first attempt forces a token refresh and one retry; any
// other non-2xx status, a 401 on the retry, or a transport error is
// terminal. There is no backoff.
func (c *Client) Send(ctx context.Context, content []byte, name string) (bool, error) {
	if !c.enabled {
		c.log.Debug("Submission disabled, skipping", "document", name)
		return true, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return false, fmt.Errorf("acquire submission slot: %w", err)
		}
		defer c.limiter.Release()
	}

	if c.breaker != nil {
		var ok bool
		err := c.breaker.Execute(func() error {
			var sendErr error
			ok, sendErr = c.send(ctx, content, name)
			return sendErr
		})
		return ok, err
	}

	return c.send(ctx, content, name)
}

func (c *Client) send(ctx context.Context, content []byte, name string) (bool, error) {
	payload := importRequest{
		Format:      "xml_ubl",
		Content:     base64.StdEncoding.EncodeToString(content),
		PostActions: []string{},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal import request: %w", err)
	}

	token, err := c.auth.GetToken(ctx)
	if err != nil {
		return false, fmt.Errorf("get authentication token: %w", err)
	}

	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		status, body, err := c.post(ctx, jsonData, token)
		if err != nil {
			return false, fmt.Errorf("execute import request: %w", err)
		}

		if status >= 200 && status < 300 {
			c.log.Debug("Document submitted", "document", name, "status", status, "attempt", attempt)
			return true, nil
		}

		if status == http.StatusUnauthorized && attempt < maxSendAttempts {
			c.log.Warn("Platform rejected token, forcing refresh", "document", name, "attempt", attempt)
			token, err = c.auth.ForceRefresh(ctx)
			if err != nil {
				return false, fmt.Errorf("refresh authentication token: %w", err)
			}
			continue
		}

		return false, fmt.Errorf("import failed with status %d: %s", status, string(body))
	}

	// Unreachable: the loop always returns.
	return false, fmt.Errorf("import failed after %d attempts", maxSendAttempts)
}

func (c *Client) post(ctx context.Context, jsonData []byte, token string) (int, []byte, error) {
	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := c.baseURL + c.importEndpoint
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

// Enabled reports whether real submission is configured.
func (c *Client) Enabled() bool { return c.enabled }

// BaseURL returns the platform base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Endpoint returns the import endpoint path.
func (c *Client) Endpoint() string { return c.importEndpoint }

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }
