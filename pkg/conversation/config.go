package conversation

import (
	"log/slog"
	"time"
)

// DefaultURL is the Deepgram Voice Agent endpoint.
const DefaultURL = "wss://agent.deepgram.com/v1/agent/converse"

// Config holds configuration for an agent connection.
type Config struct {
	// APIKey is the authentication key for the agent service.
	APIKey string

	// URL overrides the default agent endpoint.
	URL string

	// Timeout is the handshake timeout.
	Timeout time.Duration

	// WriteTimeout bounds every socket write.
	WriteTimeout time.Duration

	// KeepAliveInterval is how often a KeepAlive message is sent. Zero disables it.
	KeepAliveInterval time.Duration

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		URL:               DefaultURL,
		Timeout:           10 * time.Second,
		WriteTimeout:      5 * time.Second,
		KeepAliveInterval: 5 * time.Second,
		Logger:            slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Option is a functional option for configuring an agent connection.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithURL sets the agent endpoint.
func WithURL(url string) Option {
	return func(c *Config) {
		c.URL = url
	}
}

// WithTimeout sets the handshake timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithWriteTimeout sets the per-write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = d
	}
}

// WithKeepAlive sets the keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(c *Config) {
		c.KeepAliveInterval = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
