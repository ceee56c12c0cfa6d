package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnvOverrides()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlex()
	if err := c.normalizeManifest(); err != nil {
		return err
	}
	c.normalizeSync()
	c.normalizeJobs()
	c.normalizeSubtitles()
	c.normalizeLogging()
	c.normalizeNotifications()
	return c.normalizeHistory()
}

// applyEnvOverrides honours PLEX_URL/PLEX_TOKEN and the DUALSUB_ prefixed
// variables. Non-empty environment values replace file values.
func (c *Config) applyEnvOverrides() {
	if value, ok := lookupEnv("PLEX_URL", "DUALSUB_PLEX_URL"); ok {
		c.Plex.URL = value
	}
	if value, ok := lookupEnv("PLEX_TOKEN", "DUALSUB_PLEX_TOKEN"); ok {
		c.Plex.Token = value
	}
	if value, ok := lookupEnv("DUALSUB_API_BIND"); ok {
		c.Paths.APIBind = value
	}
	if value, ok := lookupEnv("DUALSUB_API_TOKEN"); ok {
		c.Paths.APIToken = value
	}
	if value, ok := lookupEnv("DUALSUB_TEMP_DIR"); ok {
		c.Paths.TempDir = value
	}
	if value, ok := lookupEnv("DUALSUB_NTFY_TOPIC"); ok {
		c.Notifications.NtfyTopic = value
	}
	if value, ok := lookupEnv("DUALSUB_LOG_LEVEL"); ok {
		c.Logging.Level = value
	}
	if value, ok := lookupEnv("DUALSUB_MAX_CONCURRENT_JOBS"); ok {
		if n, err := strconv.Atoi(value); err == nil {
			c.Jobs.MaxConcurrentJobs = n
		}
	}
	if value, ok := lookupEnv("DUALSUB_SYNC_TIMEOUT"); ok {
		if n, err := strconv.Atoi(value); err == nil {
			c.Sync.TimeoutSeconds = n
		}
	}
}

func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.InboxDir, err = expandPath(strings.TrimSpace(c.Paths.InboxDir)); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizePlex() {
	c.Plex.URL = strings.TrimRight(strings.TrimSpace(c.Plex.URL), "/")
	c.Plex.Token = strings.TrimSpace(c.Plex.Token)
	if c.Plex.TimeoutSeconds <= 0 {
		c.Plex.TimeoutSeconds = defaultPlexTimeoutSeconds
	}
}

func (c *Config) normalizeManifest() error {
	path := strings.TrimSpace(c.Plex.ManifestPath)
	if path == "" {
		c.Plex.ManifestPath = ""
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("plex.manifest_path: %w", err)
	}
	c.Plex.ManifestPath = expanded
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeSync() {
	c.Sync.FFSubsyncBinary = strings.TrimSpace(c.Sync.FFSubsyncBinary)
	if c.Sync.FFSubsyncBinary == "" {
		c.Sync.FFSubsyncBinary = defaultFFSubsyncBinary
	}
	if c.Sync.ProbeTimeoutSeconds <= 0 {
		c.Sync.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.CleanupIntervalMinutes <= 0 {
		c.Jobs.CleanupIntervalMinutes = defaultCleanupIntervalMinutes
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.DefaultPrimaryLanguage = strings.ToLower(strings.TrimSpace(c.Subtitles.DefaultPrimaryLanguage))
	c.Subtitles.DefaultSecondaryLanguage = strings.ToLower(strings.TrimSpace(c.Subtitles.DefaultSecondaryLanguage))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeHistory() error {
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
	path := strings.TrimSpace(c.History.Path)
	if path == "" {
		c.History.Path = filepath.Join(c.Paths.DataDir, defaultHistoryFile)
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	c.History.Path = expanded
	return nil
}
