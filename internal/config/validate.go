package config

import (
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/plxgio/sakura-launcher/internal/backup"
)

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config for required fields and valid values.
func Validate(c *Config) error {
	var errors []string

	if err := validateURL(c.ManifestBaseURL); err != nil {
		errors = append(errors, err.Error())
	}

	for field, name := range map[string]string{
		"manifest_file": c.ManifestFile,
		"archive_file":  c.ArchiveFile,
	} {
		if err := validateFileName(field, name); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if c.CheckInterval <= 0 {
		errors = append(errors, ValidationError{Field: "check_interval", Message: "must be positive"}.Error())
	}
	if c.FetchTimeout <= 0 {
		errors = append(errors, ValidationError{Field: "fetch_timeout", Message: "must be positive"}.Error())
	}
	for field, v := range map[string]int{
		"download_timeout": c.DownloadTimeout,
		"apply_timeout":    c.ApplyTimeout,
		"startup_delay":    c.StartupDelay,
		"download_retries": c.DownloadRetries,
	} {
		if v < 0 {
			errors = append(errors, ValidationError{Field: field, Message: "cannot be negative"}.Error())
		}
	}

	if c.InstallDir == "" {
		errors = append(errors, ValidationError{Field: "install_dir", Message: "install_dir is required"}.Error())
	}

	for i, p := range c.BackupFiles {
		if err := validateBackupFile(i, p); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("unknown log level '%s'", c.LogLevel),
		}.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return ValidationError{Field: "manifest_base_url", Message: "manifest_base_url is required"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ValidationError{Field: "manifest_base_url", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ValidationError{
			Field:   "manifest_base_url",
			Message: fmt.Sprintf("unsupported scheme '%s' (must be http or https)", u.Scheme),
		}
	}
	if u.Host == "" {
		return ValidationError{Field: "manifest_base_url", Message: "host is required"}
	}

	return nil
}

func validateFileName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return ValidationError{Field: field, Message: fmt.Sprintf("%s is required", field)}
	}
	if strings.ContainsAny(name, `/\`) {
		return ValidationError{Field: field, Message: fmt.Sprintf("'%s' must be a plain file name", name)}
	}
	return nil
}

func validateBackupFile(index int, p string) error {
	field := fmt.Sprintf("backup_files[%d]", index)
	if strings.TrimSpace(p) == "" {
		return ValidationError{Field: field, Message: "path cannot be empty"}
	}
	if err := backup.ValidatePath(p); err != nil {
		return ValidationError{Field: field, Message: err.Error()}
	}

	first := strings.SplitN(strings.ReplaceAll(strings.TrimPrefix(p, "./"), `\`, "/"), "/", 2)[0]
	if first == BackupDirName || first == TempDirName {
		return ValidationError{Field: field, Message: fmt.Sprintf("'%s' is managed by the updater", p)}
	}
	return nil
}
