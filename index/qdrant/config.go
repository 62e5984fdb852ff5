package qdrant

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	qd "github.com/qdrant/go-client/qdrant"
)

const (
	DefaultURL     = "http://localhost:6334"
	DefaultTimeout = 60 * time.Second

	defaultPort = 6334
)

// Config holds connection settings for a Qdrant server.
// URL names the gRPC endpoint; https enables TLS.
type Config struct {
	URL      string
	APIKey   string
	Timeout  time.Duration // Per request
	PoolSize uint          // gRPC connections; 0 uses the client default
}

// DefaultConfig returns a Config pointing at a local server.
func DefaultConfig() *Config {
	return &Config{
		URL:     DefaultURL,
		Timeout: DefaultTimeout,
	}
}

// Normalize trims the URL and fills zero values with defaults.
func (c *Config) Normalize() {
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	_, err := c.clientConfig()
	return err
}

// clientConfig translates the URL into go-client settings.
func (c *Config) clientConfig() (*qd.Config, error) {
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return nil, errors.New("qdrant URL must start with http:// or https://")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant URL: %w", err)
	}
	if u.Hostname() == "" {
		return nil, errors.New("qdrant URL has no host")
	}

	port := defaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid qdrant port %q", p)
		}
	}

	return &qd.Config{
		Host:     u.Hostname(),
		Port:     port,
		APIKey:   c.APIKey,
		UseTLS:   u.Scheme == "https",
		PoolSize: c.PoolSize,

		SkipCompatibilityCheck: true,
	}, nil
}
