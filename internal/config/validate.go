package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must be set")
	}
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url: unsupported scheme %q", parsed.Scheme)
	}
	if c.API.RateLimit <= 0 {
		return errors.New("api.rate_limit must be positive")
	}
	if c.API.RetryDelaySeconds < 0 {
		return errors.New("api.retry_delay_seconds must be >= 0")
	}
	if c.API.NotImplementedDelaySeconds < 0 {
		return errors.New("api.not_implemented_delay_seconds must be >= 0")
	}
	if c.API.CacheTTLSeconds < 0 {
		return errors.New("api.cache_ttl_seconds must be >= 0")
	}
	if c.API.CacheCapacity < 0 {
		return errors.New("api.cache_capacity must be >= 0")
	}
	if c.API.RequestTimeoutSeconds < 0 {
		return errors.New("api.request_timeout_seconds must be >= 0")
	}
	if c.API.FilterID < 0 {
		return errors.New("api.filter_id must be >= 0")
	}
	return nil
}

func (c *Config) validateIndex() error {
	if c.Paths.IndexFile == "" {
		return errors.New("paths.index_file must be set")
	}
	if c.Index.CheckpointEvery < 0 {
		return errors.New("index.checkpoint_every must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
