package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:          "~/.config/webwatch",
			SQLiteFile:    "webwatch.db",
			BusyTimeoutMS: 5000,
		},
		Backup: BackupConfig{
			Enabled:         true,
			IntervalMinutes: 5,
			File:            "webwatch.backup.db",
		},
		Capture: CaptureConfig{
			SkipLocalhost: true,
			TextMaxLength: 0,
		},
		Report: ReportConfig{
			DefaultDays:  7,
			DefaultLimit: 100,
			SearchLimit:  50,
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           5000,
			MaxRequestSize: 10485760,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Summarizer: SummarizerConfig{
			Enabled:           false,
			BaseURL:           "https://api.openai.com",
			APIKey:            "",
			Model:             "gpt-4o-mini",
			TimeoutSeconds:    60,
			RequestsPerMinute: 20,
			MaxInputBytes:     100000,
			QueueSize:         64,
		},
		Blocklist: BlocklistConfig{
			SeedDefaults: true,
		},
	}
}
