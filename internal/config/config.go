package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/webwatch/config.yaml"

// Config holds all webwatch configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Backup     BackupConfig     `yaml:"backup"`
	Capture    CaptureConfig    `yaml:"capture"`
	Report     ReportConfig     `yaml:"report"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Logging    LoggingConfig    `yaml:"logging"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Blocklist  BlocklistConfig  `yaml:"blocklist"`
}

type StorageConfig struct {
	Path          string `yaml:"path"`
	SQLiteFile    string `yaml:"sqlite_file"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type BackupConfig struct {
	Enabled         bool   `yaml:"enabled"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	File            string `yaml:"file"`
}

type CaptureConfig struct {
	SkipLocalhost bool `yaml:"skip_localhost"`
	TextMaxLength int  `yaml:"text_max_length"`
}

type ReportConfig struct {
	DefaultDays  int `yaml:"default_days"`
	DefaultLimit int `yaml:"default_limit"`
	SearchLimit  int `yaml:"search_limit"`
}

type DaemonConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxRequestSize int64  `yaml:"max_request_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type SummarizerConfig struct {
	Enabled           bool   `yaml:"enabled"`
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	MaxInputBytes     int    `yaml:"max_input_bytes"`
	QueueSize         int    `yaml:"queue_size"`
}

type BlocklistConfig struct {
	SeedDefaults bool `yaml:"seed_defaults"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// LoadDotEnv loads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides cfg with any of the supported environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("WEBWATCH_DB_PATH"); v != "" {
		c.Storage.Path = filepath.Dir(v)
		c.Storage.SQLiteFile = filepath.Base(v)
	}
	if v := os.Getenv("WEBWATCH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WEBWATCH_PORT %q: %w", v, err)
		}
		c.Daemon.Port = port
	}
	if v := os.Getenv("WEBWATCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Summarizer.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Summarizer.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Summarizer.Model = v
	}
	return nil
}

// DBPath returns the expanded SQLite database path.
func (c *Config) DBPath() (string, error) {
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// BackupPath returns the expanded snapshot path. A relative backup file
// lives next to the database.
func (c *Config) BackupPath() (string, error) {
	p, err := expandPath(c.Backup.File)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// LogPath returns the expanded log file path, or "" for stderr.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	return expandPath(c.Logging.File)
}

// Addr is the host:port the daemon listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Daemon.Host, c.Daemon.Port)
}
