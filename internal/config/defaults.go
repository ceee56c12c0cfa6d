package config

const (
	defaultConfigPath             = "~/.config/dualsub/config.toml"
	defaultDataDir                = "~/.local/share/dualsub"
	defaultTempDir                = "~/.local/share/dualsub/tmp"
	defaultLogDir                 = "~/.local/share/dualsub/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultPlexURL                = "http://localhost:32400"
	defaultPlexTimeoutSeconds     = 10
	defaultFFSubsyncBinary        = "ffsubsync"
	defaultSyncTimeoutSeconds     = 120
	defaultBulkSyncTimeoutSeconds = 90
	defaultProbeTimeoutSeconds    = 10
	defaultMaxOffsetSeconds       = 60
	defaultMaxConcurrentJobs      = 2
	defaultRetentionHours         = 24
	defaultCleanupIntervalMinutes = 60
	defaultPrimaryLanguage        = "ja"
	defaultSecondaryLanguage      = "en"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultHistoryFile            = "history.db"
	defaultHistoryRetentionDays   = 90
	defaultNtfyTimeoutSeconds     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			TempDir: defaultTempDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Plex: Plex{
			URL:            defaultPlexURL,
			TimeoutSeconds: defaultPlexTimeoutSeconds,
		},
		Sync: Sync{
			Enabled:             true,
			FFSubsyncBinary:     defaultFFSubsyncBinary,
			TimeoutSeconds:      defaultSyncTimeoutSeconds,
			BulkTimeoutSeconds:  defaultBulkSyncTimeoutSeconds,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
			MaxOffsetSeconds:    defaultMaxOffsetSeconds,
		},
		Jobs: Jobs{
			MaxConcurrentJobs:      defaultMaxConcurrentJobs,
			RetentionHours:         defaultRetentionHours,
			CleanupIntervalMinutes: defaultCleanupIntervalMinutes,
		},
		Subtitles: Subtitles{
			DefaultPrimaryLanguage:   defaultPrimaryLanguage,
			DefaultSecondaryLanguage: defaultSecondaryLanguage,
			LanguagePrefix:           true,
			LanguageDetection:        true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
			NotifySuccess:         true,
		},
	}
}
