package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// validQualities are the Qobuz format identifiers: 5 = MP3 320, 6 = FLAC 16/44.1,
// 7 = FLAC 24 ≤96kHz, 27 = FLAC 24 ≤192kHz.
var validQualities = map[int]bool{5: true, 6: true, 7: true, 27: true}

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Downloads   DownloadsConfig   `toml:"downloads"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Dashboard   DashboardConfig   `toml:"dashboard"`
	Database    DatabaseConfig    `toml:"database"`
	Logging     LoggingConfig     `toml:"logging"`
}

// CredentialsConfig contains Qobuz account credentials and application keys.
type CredentialsConfig struct {
	Email     string `toml:"email"`
	Password  string `toml:"password"`
	AppID     string `toml:"app_id"`
	AppSecret string `toml:"app_secret"`
}

// DownloadsConfig contains download directory, quality, and throttling settings.
type DownloadsConfig struct {
	Directory         string `toml:"directory"`
	Quality           int    `toml:"quality"`
	MaxWorkersTracks  int    `toml:"max_workers_tracks"`
	MaxWorkersAlbums  int    `toml:"max_workers_albums"`
	MaxWorkersArtists int    `toml:"max_workers_artists"`
	BatchSize         int    `toml:"batch_size"`
	BatchDelaySecs    int    `toml:"batch_delay_seconds"`
	RetryCap          int    `toml:"retry_cap"`
}

// SchedulerConfig contains the reconciliation cycle cadence.
type SchedulerConfig struct {
	CheckIntervalMinutes int  `toml:"check_interval_minutes"`
	RunOnStart           bool `toml:"run_on_start"`
}

// DashboardConfig contains HTTP dashboard settings.
type DashboardConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

// DatabaseConfig contains ledger database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoggingConfig contains log verbosity and rotation settings.
type LoggingConfig struct {
	Level      string `toml:"level"`
	FilePath   string `toml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks configuration invariants that would otherwise surface as
// runtime misbehavior. Invalid configuration is the only startup-fatal error.
func (c *Config) Validate() error {
	if c.Credentials.Email == "" || c.Credentials.Password == "" {
		return fmt.Errorf("%w: qobuz email and password are required", ErrMissingCredentials)
	}
	if !validQualities[c.Downloads.Quality] {
		return fmt.Errorf("%w: quality must be one of 5, 6, 7, 27 (got %d)", ErrInvalidConfig, c.Downloads.Quality)
	}
	if c.Downloads.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be at least 1", ErrInvalidConfig)
	}
	for kind, workers := range map[string]int{
		"tracks":  c.Downloads.MaxWorkersTracks,
		"albums":  c.Downloads.MaxWorkersAlbums,
		"artists": c.Downloads.MaxWorkersArtists,
	} {
		if workers < 1 {
			return fmt.Errorf("%w: max workers for %s must be at least 1", ErrInvalidConfig, kind)
		}
	}
	if c.Scheduler.CheckIntervalMinutes < 1 {
		return fmt.Errorf("%w: check_interval_minutes must be at least 1", ErrInvalidConfig)
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port < 1 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("%w: dashboard port %d out of range", ErrInvalidConfig, c.Dashboard.Port)
	}
	return nil
}

// CheckInterval returns the scheduler cadence as a [time.Duration].
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Scheduler.CheckIntervalMinutes) * time.Minute
}

// BatchDelay returns the inter-batch pause as a [time.Duration].
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Downloads.BatchDelaySecs) * time.Second
}
