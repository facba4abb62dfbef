package config

import (
	"errors"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return errors.New("paths.api_bind must be a host:port address")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.DefaultMaxAttempts < 1 {
		return errors.New("queue.default_max_attempts must be >= 1")
	}
	if c.Queue.DefaultMaxParallel < 1 {
		return errors.New("queue.default_max_parallel must be >= 1")
	}
	if c.Queue.ClaimRetryAttempts < 1 {
		return errors.New("queue.claim_retry_attempts must be >= 1")
	}
	if c.Queue.StaleAfterSeconds < 0 {
		return errors.New("queue.stale_after_seconds must be >= 0")
	}
	if c.Queue.StaleAfterSeconds > 0 && c.Queue.SweepIntervalSeconds >= c.Queue.StaleAfterSeconds {
		return errors.New("queue.sweep_interval_seconds must be less than queue.stale_after_seconds")
	}
	if c.Queue.SweepIntervalSeconds <= 0 {
		return errors.New("queue.sweep_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return errors.New("notifications.ntfy_topic must be a full http(s) URL")
	}
	return nil
}
