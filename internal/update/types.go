package update

import (
	"context"
	"time"

	"github.com/plxgio/sakura-launcher/internal/backup"
)

// Manifest describes the latest release published on the update feed.
type Manifest struct {
	Version     string   `json:"version"`
	Changelog   string   `json:"changelog"`
	DownloadURL string   `json:"download_url"`
	Files       []string `json:"files"`
	SHA256      string   `json:"sha256,omitempty"` // Optional hex digest of the archive
}

// PendingUpdate is a manifest found to be newer than the running version,
// persisted until the user applies or abandons it.
type PendingUpdate struct {
	RemoteVersion string    `json:"remote_version"`
	Changelog     string    `json:"changelog"`
	DownloadURL   string    `json:"download_url"`
	Files         []string  `json:"files"`
	SHA256        string    `json:"sha256,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// NewPendingUpdate records m as fetched at the given time.
func NewPendingUpdate(m *Manifest, fetchedAt time.Time) PendingUpdate {
	files := make([]string, len(m.Files))
	copy(files, m.Files)
	return PendingUpdate{
		RemoteVersion: m.Version,
		Changelog:     m.Changelog,
		DownloadURL:   m.DownloadURL,
		Files:         files,
		SHA256:        m.SHA256,
		FetchedAt:     fetchedAt,
	}
}

// CheckResult describes the outcome of a single check.
type CheckResult struct {
	Skipped        bool      // Interval has not elapsed, nothing was fetched
	Available      bool      // Remote version is newer than the running one
	CurrentVersion string    // Running version
	Manifest       *Manifest // Fetched manifest, nil when skipped
}

// Fetcher retrieves the remote manifest.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Manifest, error)
}

// Downloader streams an update archive to local storage.
type Downloader interface {
	Download(ctx context.Context, url, dst string, onProgress func(percent int)) (string, error)
	VerifyChecksum(path, sha256hex string) error
}

// Backuper snapshots and restores the tracked installation files.
type Backuper interface {
	Backup(files []string) (*backup.Snapshot, error)
	Restore() (int, error)
	Clear() error
}

// Applier extracts a downloaded archive over the installation.
type Applier interface {
	Extract(ctx context.Context, archivePath string, onProgress func(percent int)) (int, error)
}
