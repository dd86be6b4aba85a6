package embed

import (
	"net/http"
	"time"
)

// config holds shared configuration for embedder implementations.
type config struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension sets the desired output vector dimensionality.
// Not all models support this (e.g. text-embedding-ada-002 is fixed).
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithMaxRetries lets the SDK resend a failed request up to n times. The
// default is 0: a failed call surfaces to the caller, which decides whether
// to retry.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = max(n, 0) }
}

// WithTimeout bounds every API request. It replaces the HTTP client with
// one carrying the timeout, so apply it after WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		base := c.httpClient
		if base == nil {
			base = http.DefaultClient
		}
		cp := *base
		cp.Timeout = d
		c.httpClient = &cp
	}
}
