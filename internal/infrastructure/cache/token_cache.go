package cache

import (
	"sync"
	"time"
)

// TokenCache holds one bearer credential with its expiry. All access goes
// through a single lock; the cached window is deliberately shorter than
// the credential's real lifetime so refresh happens pre-emptively.
type TokenCache struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewTokenCache creates an empty thread-safe token cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{now: time.Now}
}

// Get returns the cached token if it is still inside its validity window.
func (c *TokenCache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" || c.now().After(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// Set stores a token valid for ttl from now.
func (c *TokenCache) Set(token string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	c.expiresAt = c.now().Add(ttl)
}

// Clear removes the cached token, forcing the next Get to miss.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.expiresAt = time.Time{}
}

// IsExpired reports whether the cache holds no usable token.
func (c *TokenCache) IsExpired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token == "" || c.now().After(c.expiresAt)
}
