// Package httpx provides shared HTTP client construction for outbound calls
// to the source platform, the queue transport, and the mail API.
package httpx

import (
	"net/http"
	"time"
)

const (
	// DefaultTimeout applies when the caller does not set one.
	DefaultTimeout = 30 * time.Second

	idleConnTimeout     = 90 * time.Second
	maxIdleConnsPerHost = 10
	tlsHandshakeTimeout = 10 * time.Second
)

// ClientConfig configures an outbound HTTP client.
type ClientConfig struct {
	// Timeout limits the total time per request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewClient creates an HTTP client with connection pooling tuned for the
// small set of hosts this service talks to. A nil cfg uses defaults.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: maxIdleConnsPerHost,
			IdleConnTimeout:     idleConnTimeout,
			TLSHandshakeTimeout: tlsHandshakeTimeout,
		},
	}
}
