package pa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"3tcapital/ms_einvoice_batch/internal/infrastructure/cache"
)

// HTTPClient interface allows using both standard and instrumented HTTP clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthManager handles platform authentication with token caching. The
// cached token lives for a configured window shorter than the real
// credential lifetime, so it is refreshed pre-emptively.
type AuthManager struct {
	baseURL       string
	loginEndpoint string
	username      string
	password      string
	tokenTTL      time.Duration
	cache         *cache.TokenCache
	client        HTTPClient
	log           *slog.Logger
	mu            sync.Mutex // Protects token refresh to avoid concurrent requests
}

// tokenRequest represents the authentication request payload.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse represents the authentication response payload.
type tokenResponse struct {
	Token string `json:"token"`
}

// NewAuthManager creates a new platform authentication manager.
func NewAuthManager(baseURL, loginEndpoint, username, password string, tokenTTL time.Duration, client HTTPClient, log *slog.Logger) *AuthManager {
	return &AuthManager{
		baseURL:       baseURL,
		loginEndpoint: loginEndpoint,
		username:      username,
		password:      password,
		tokenTTL:      tokenTTL,
		cache:         cache.NewTokenCache(),
		client:        client,
		log:           log,
	}
}

// GetToken returns a valid authentication token, refreshing if necessary.
func (a *AuthManager) GetToken(ctx context.Context) (string, error) {
	if token, ok := a.cache.Get(); ok {
		return token, nil
	}

	// Token expired or not cached, need to refresh
	// Use mutex to prevent multiple concurrent refresh requests
	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring lock (another goroutine might have refreshed)
	if token, ok := a.cache.Get(); ok {
		return token, nil
	}

	token, err := a.authenticate(ctx)
	if err != nil {
		a.log.Error("Platform authentication failed", "error", err)
		return "", fmt.Errorf("platform authentication failed: %w", err)
	}

	a.cache.Set(token, a.tokenTTL)
	a.log.Debug("Platform token refreshed and cached", "ttl", a.tokenTTL)

	return token, nil
}

// ForceRefresh discards the cached token and authenticates again. Used
// when the platform rejects a request with 401 before the cached window
// has elapsed.
func (a *AuthManager) ForceRefresh(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cache.Clear()

	token, err := a.authenticate(ctx)
	if err != nil {
		a.log.Error("Platform re-authentication failed", "error", err)
		return "", fmt.Errorf("platform authentication failed: %w", err)
	}

	a.cache.Set(token, a.tokenTTL)
	a.log.Debug("Platform token force-refreshed", "ttl", a.tokenTTL)

	return token, nil
}

// authenticate performs the actual authentication request to the platform.
func (a *AuthManager) authenticate(ctx context.Context) (string, error) {
	url := a.baseURL + a.loginEndpoint

	reqBody := tokenRequest{
		Username: a.username,
		Password: a.password,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if tokenResp.Token == "" {
		return "", fmt.Errorf("empty token in response")
	}

	return tokenResp.Token, nil
}

// ClearToken removes the cached token, forcing a refresh on next request.
func (a *AuthManager) ClearToken() {
	a.cache.Clear()
}
