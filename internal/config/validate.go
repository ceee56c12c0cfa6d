package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePlex() error {
	if c.Plex.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Plex.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("plex.url %q must be an absolute http(s) URL", c.Plex.URL)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.TimeoutSeconds <= 0 {
		return errors.New("sync.timeout_seconds must be positive")
	}
	if c.Sync.BulkTimeoutSeconds <= 0 {
		return errors.New("sync.bulk_timeout_seconds must be positive")
	}
	if c.Sync.MaxOffsetSeconds <= 0 {
		return errors.New("sync.max_offset_seconds must be positive")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.MaxConcurrentJobs < 1 {
		return errors.New("jobs.max_concurrent_jobs must be at least 1")
	}
	if c.Jobs.RetentionHours < 1 {
		return errors.New("jobs.retention_hours must be at least 1")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	pri := c.Subtitles.DefaultPrimaryLanguage
	sec := c.Subtitles.DefaultSecondaryLanguage
	if pri == "" || sec == "" {
		return errors.New("subtitles.default_primary_language and default_secondary_language must be set")
	}
	if strings.EqualFold(pri, sec) {
		return fmt.Errorf("subtitles: primary and secondary language are both %q", pri)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
