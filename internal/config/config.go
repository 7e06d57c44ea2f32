// Package config handles launcher configuration loading and location resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default values.
const (
	DefaultManifestBaseURL = "https://raw.githubusercontent.com/Plxgio/SakuraLauncher/master/updates/"
	DefaultManifestFile    = "launcher_version.json"
	DefaultArchiveFile     = "launcher_update.zip"
	DefaultCheckInterval   = 3600
	DefaultFetchTimeout    = 10
	DefaultDownloadTimeout = 600
	DefaultApplyTimeout    = 300
	DefaultStartupDelay    = 2
	DefaultDownloadRetries = 2
	DefaultLogLevel        = "info"
)

// Files and directories kept under the installation directory.
const (
	TempDirName       = "temp_updates"
	BackupDirName     = "backup"
	LastCheckFileName = "last_check.txt"
	PendingFileName   = "update_info.json"
)

// ManagedPaths lists the entries under the installation directory that belong
// to the updater and must never come from an update archive.
func ManagedPaths() []string {
	return []string{TempDirName, BackupDirName, LastCheckFileName, PendingFileName}
}

// EnvConfigPath names the environment variable holding an explicit config path.
const EnvConfigPath = "LAUNCHER_CONFIG"

// ErrNoConfigFile is returned by FindConfigFile when no file exists in any
// standard location.
var ErrNoConfigFile = errors.New("no launcher config file found")

// DefaultBackupFiles lists the installation files snapshotted before an update.
var DefaultBackupFiles = []string{
	"launcher",
	"assets/logo.png",
	"assets/fondo.png",
	"assets/background.png",
}

// Config is the launcher configuration. Durations are whole seconds.
type Config struct {
	ManifestBaseURL      string   `yaml:"manifest_base_url" toml:"manifest_base_url" json:"manifest_base_url"`
	ManifestFile         string   `yaml:"manifest_file" toml:"manifest_file" json:"manifest_file"`
	ArchiveFile          string   `yaml:"archive_file" toml:"archive_file" json:"archive_file"`
	CheckInterval        int      `yaml:"check_interval" toml:"check_interval" json:"check_interval"`
	FetchTimeout         int      `yaml:"fetch_timeout" toml:"fetch_timeout" json:"fetch_timeout"`
	DownloadTimeout      int      `yaml:"download_timeout" toml:"download_timeout" json:"download_timeout"` // 0 = unbounded
	ApplyTimeout         int      `yaml:"apply_timeout" toml:"apply_timeout" json:"apply_timeout"`          // 0 = unbounded
	StartupDelay         int      `yaml:"startup_delay" toml:"startup_delay" json:"startup_delay"`
	DownloadRetries      int      `yaml:"download_retries" toml:"download_retries" json:"download_retries"`
	InstallDir           string   `yaml:"install_dir" toml:"install_dir" json:"install_dir"`
	BackupFiles          []string `yaml:"backup_files" toml:"backup_files" json:"backup_files"`
	ClearBackupOnSuccess bool     `yaml:"clear_backup_on_success" toml:"clear_backup_on_success" json:"clear_backup_on_success"`
	LogLevel             string   `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogFile              string   `yaml:"log_file" toml:"log_file" json:"log_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ManifestBaseURL: DefaultManifestBaseURL,
		ManifestFile:    DefaultManifestFile,
		ArchiveFile:     DefaultArchiveFile,
		CheckInterval:   DefaultCheckInterval,
		FetchTimeout:    DefaultFetchTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		ApplyTimeout:    DefaultApplyTimeout,
		StartupDelay:    DefaultStartupDelay,
		DownloadRetries: DefaultDownloadRetries,
		InstallDir:      ExecutableDir(),
		BackupFiles:     append([]string(nil), DefaultBackupFiles...),
		LogLevel:        DefaultLogLevel,
	}
}

// ExecutableDir returns the directory holding the running binary, or the
// working directory when that cannot be determined.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// ManifestURL joins the base URL and manifest file name with exactly one slash.
func (c *Config) ManifestURL() string {
	return strings.TrimRight(c.ManifestBaseURL, "/") + "/" + strings.TrimLeft(c.ManifestFile, "/")
}

// TempDir is where update archives are downloaded.
func (c *Config) TempDir() string {
	return filepath.Join(c.InstallDir, TempDirName)
}

// BackupDir is where the pre-update snapshot lives.
func (c *Config) BackupDir() string {
	return filepath.Join(c.InstallDir, BackupDirName)
}

// LastCheckFile holds the time of the last update check.
func (c *Config) LastCheckFile() string {
	return filepath.Join(c.InstallDir, LastCheckFileName)
}

// PendingFile holds the pending update record.
func (c *Config) PendingFile() string {
	return filepath.Join(c.InstallDir, PendingFileName)
}

// CheckIntervalDuration returns CheckInterval as a time.Duration.
func (c *Config) CheckIntervalDuration() time.Duration {
	return seconds(c.CheckInterval)
}

// FetchTimeoutDuration returns FetchTimeout as a time.Duration.
func (c *Config) FetchTimeoutDuration() time.Duration {
	return seconds(c.FetchTimeout)
}

// DownloadTimeoutDuration returns DownloadTimeout as a time.Duration.
func (c *Config) DownloadTimeoutDuration() time.Duration {
	return seconds(c.DownloadTimeout)
}

// ApplyTimeoutDuration returns ApplyTimeout as a time.Duration.
func (c *Config) ApplyTimeoutDuration() time.Duration {
	return seconds(c.ApplyTimeout)
}

// StartupDelayDuration returns StartupDelay as a time.Duration.
func (c *Config) StartupDelayDuration() time.Duration {
	return seconds(c.StartupDelay)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// FindConfigFile searches for a launcher config file in the standard locations.
// Returns the path to the first file found, or ErrNoConfigFile.
func FindConfigFile(explicitPath, installDir string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Check LAUNCHER_CONFIG environment variable
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	var searchPaths []string
	if installDir != "" {
		searchPaths = append(searchPaths, installDir)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		if home, err := os.UserHomeDir(); err == nil {
			xdgConfig = filepath.Join(home, ".config")
		}
	}
	if xdgConfig != "" {
		searchPaths = append(searchPaths, filepath.Join(xdgConfig, "sakura-launcher"))
	}

	fileNames := []string{
		"launcher.yaml",
		"launcher.yml",
		"launcher.toml",
		"launcher.json",
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", ErrNoConfigFile
}

// Load reads and parses a config file from the given path. Keys missing from
// the file keep their default values. A relative install_dir is resolved
// against the directory of the config file.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format, Default())
	if err != nil {
		return nil, err
	}

	if cfg.InstallDir != "" && !filepath.IsAbs(cfg.InstallDir) {
		cfg.InstallDir = filepath.Join(filepath.Dir(path), cfg.InstallDir)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve finds and loads the config file, falling back to the defaults when
// none exists. It returns the path that was loaded, or "" for defaults.
func Resolve(explicitPath string) (*Config, string, error) {
	path, err := FindConfigFile(explicitPath, ExecutableDir())
	if errors.Is(err, ErrNoConfigFile) {
		cfg := Default()
		return cfg, "", Validate(cfg)
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
