package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	TempDir  string `toml:"temp_dir"`
	LogDir   string `toml:"log_dir"`
	InboxDir string `toml:"inbox_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Plex contains configuration for the Plex catalog client.
type Plex struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// ManifestPath points at a YAML catalog used instead of the server.
	ManifestPath string `toml:"manifest_path"`
}

// Sync contains configuration for subtitle synchronization.
type Sync struct {
	Enabled             bool   `toml:"enabled"`
	FFSubsyncBinary     string `toml:"ffsubsync_binary"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	BulkTimeoutSeconds  int    `toml:"bulk_timeout_seconds"`
	ProbeTimeoutSeconds int    `toml:"probe_timeout_seconds"`
	MaxOffsetSeconds    int    `toml:"max_offset_seconds"`
}

// Jobs contains configuration for the job orchestrator.
type Jobs struct {
	MaxConcurrentJobs      int `toml:"max_concurrent_jobs"`
	RetentionHours         int `toml:"retention_hours"`
	CleanupIntervalMinutes int `toml:"cleanup_interval_minutes"`
}

// Subtitles contains defaults for dual subtitle composition.
type Subtitles struct {
	DefaultPrimaryLanguage   string `toml:"default_primary_language"`
	DefaultSecondaryLanguage string `toml:"default_secondary_language"`
	LanguagePrefix           bool   `toml:"language_prefix"`
	LanguageDetection        bool   `toml:"language_detection"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// History contains configuration for the terminal job archive.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// RetentionDays bounds the archive; 0 keeps entries forever.
	RetentionDays int `toml:"retention_days"`
}

// Notifications contains ntfy settings for finished-job alerts.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifySuccess         bool   `toml:"notify_success"`
}

// Config encapsulates all configuration values for dualsub.
//
// Configuration sections by subsystem:
//   - Paths: data, temp, log and inbox directories plus the API bind address
//   - Plex: catalog server URL and token
//   - Sync: ffsubsync invocation and timeouts
//   - Jobs: concurrency ceiling and retention
//   - Subtitles: default languages and composition options
//   - Logging: log format and level
//   - History: sqlite archive of finished jobs
//   - Notifications: ntfy alerts when jobs finish
type Config struct {
	Paths     Paths     `toml:"paths"`
	Plex      Plex      `toml:"plex"`
	Sync      Sync      `toml:"sync"`
	Jobs      Jobs      `toml:"jobs"`
	Subtitles Subtitles `toml:"subtitles"`
	Logging   Logging   `toml:"logging"`
	History   History   `toml:"history"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	loadDotEnv(filepath.Dir(resolvedPath))

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files beside the config file and in the working
// directory. Variables already present in the environment win.
func loadDotEnv(configDir string) {
	candidates := []string{".env"}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("dualsub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.TempDir, c.Paths.LogDir, c.Paths.InboxDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SyncTimeout returns the alignment timeout for the given mode. Bulk runs
// never exceed the bulk budget.
func (c *Config) SyncTimeout(bulk bool) time.Duration {
	timeout := time.Duration(c.Sync.TimeoutSeconds) * time.Second
	if bulk {
		if capped := time.Duration(c.Sync.BulkTimeoutSeconds) * time.Second; capped > 0 && capped < timeout {
			return capped
		}
	}
	return timeout
}

// HistoryRetention returns how long archived jobs are kept, or 0 for forever.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// Retention returns how long terminal jobs stay in the registry.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Jobs.RetentionHours) * time.Hour
}

// FFmpegBinary returns the ffmpeg executable name used for stream extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probes.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
