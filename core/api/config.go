package api

import "time"

// Config provides environment-based configuration for the backend client.
type Config struct {
	BaseURL string        `env:"AUTHKIT_API_BASE_URL,required"`
	Timeout time.Duration `env:"AUTHKIT_API_TIMEOUT" envDefault:"15s"`
}

// NewFromConfig creates a Client from configuration.
func NewFromConfig(cfg Config, opts ...Option) *Client {
	opts = append([]Option{WithTimeout(cfg.Timeout)}, opts...)
	return New(cfg.BaseURL, opts...)
}
