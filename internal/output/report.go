package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

// StatusReport describes the installation and its update state.
type StatusReport struct {
	Version     string       `json:"version" yaml:"version"`
	Commit      string       `json:"commit,omitempty" yaml:"commit,omitempty"`
	InstallDir  string       `json:"install_dir" yaml:"install_dir"`
	ManifestURL string       `json:"manifest_url" yaml:"manifest_url"`
	ConfigFile  string       `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	LastCheck   *time.Time   `json:"last_check,omitempty" yaml:"last_check,omitempty"`
	NextCheck   *time.Time   `json:"next_check,omitempty" yaml:"next_check,omitempty"`
	Pending     *PendingInfo `json:"pending,omitempty" yaml:"pending,omitempty"`
	Backup      *BackupInfo  `json:"backup,omitempty" yaml:"backup,omitempty"`
}

// PendingInfo summarizes a pending update.
type PendingInfo struct {
	Version     string    `json:"version" yaml:"version"`
	Changelog   string    `json:"changelog,omitempty" yaml:"changelog,omitempty"`
	DownloadURL string    `json:"download_url" yaml:"download_url"`
	FetchedAt   time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// BackupInfo summarizes the backup snapshot.
type BackupInfo struct {
	ID              string    `json:"id,omitempty" yaml:"id,omitempty"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	LauncherVersion string    `json:"launcher_version,omitempty" yaml:"launcher_version,omitempty"`
	Files           []string  `json:"files" yaml:"files"`
	Size            int64     `json:"size" yaml:"size"`
}

func (r StatusReport) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Version:      %s", r.Version)
	if r.Commit != "" {
		fmt.Fprintf(&b, " (%s)", r.Commit)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Install dir:  %s\n", r.InstallDir)
	fmt.Fprintf(&b, "Update feed:  %s\n", r.ManifestURL)
	if r.ConfigFile != "" {
		fmt.Fprintf(&b, "Config file:  %s\n", r.ConfigFile)
	}

	if r.LastCheck != nil {
		fmt.Fprintf(&b, "Last check:   %s (%s)\n", r.LastCheck.Local().Format(time.DateTime), humanize.Time(*r.LastCheck))
	} else {
		b.WriteString("Last check:   never\n")
	}
	if r.NextCheck != nil {
		fmt.Fprintf(&b, "Next check:   %s\n", humanize.Time(*r.NextCheck))
	}

	if r.Pending != nil {
		fmt.Fprintf(&b, "\nPending update: %s (found %s)\n", r.Pending.Version, humanize.Time(r.Pending.FetchedAt))
		for _, line := range lo.Compact(strings.Split(strings.TrimSpace(r.Pending.Changelog), "\n")) {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	} else {
		b.WriteString("\nPending update: none\n")
	}

	if r.Backup != nil {
		fmt.Fprintf(&b, "\nBackup: %d files, %s, taken %s", len(r.Backup.Files), humanize.Bytes(uint64(r.Backup.Size)), humanize.Time(r.Backup.CreatedAt))
		if r.Backup.LauncherVersion != "" {
			fmt.Fprintf(&b, " from %s", r.Backup.LauncherVersion)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("\nBackup: none\n")
	}

	return b.String()
}

// CheckReport is the result of a single update check.
type CheckReport struct {
	CurrentVersion string `json:"current_version" yaml:"current_version"`
	RemoteVersion  string `json:"remote_version,omitempty" yaml:"remote_version,omitempty"`
	Available      bool   `json:"available" yaml:"available"`
	Skipped        bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Changelog      string `json:"changelog,omitempty" yaml:"changelog,omitempty"`
}

func (r CheckReport) String() string {
	switch {
	case r.Skipped:
		return fmt.Sprintf("Checked recently; skipping (current version %s). Use --force to check now.", r.CurrentVersion)
	case r.Available:
		s := fmt.Sprintf("Update available: %s -> %s", r.CurrentVersion, r.RemoteVersion)
		if r.Changelog != "" {
			s += "\n" + r.Changelog
		}
		return s
	default:
		return fmt.Sprintf("Up to date (%s, remote %s)", r.CurrentVersion, r.RemoteVersion)
	}
}
