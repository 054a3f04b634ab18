package http

import (
	"net/http"
	"time"
)

// defaultTimeout bounds outbound calls when the caller does not set
// one. The stylesheet service and the platform login both finish well
// within it.
const defaultTimeout = 30 * time.Second

// ClientConfig holds the knobs for outbound HTTP clients.
type ClientConfig struct {
	Timeout       time.Duration
	Transport     http.RoundTripper
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// NewClient builds an HTTP client for the transformation and platform
// adapters. A nil config falls back to the default timeout.
func NewClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = &ClientConfig{Timeout: defaultTimeout}
	}

	client := &http.Client{Timeout: config.Timeout}
	if config.Transport != nil {
		client.Transport = config.Transport
	}
	if config.CheckRedirect != nil {
		client.CheckRedirect = config.CheckRedirect
	}
	return client
}
