// Package backup snapshots launcher installation files before an update and
// restores them when the update fails.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// MetadataFile is written at the root of the backup directory and is never
// restored into the installation.
const MetadataFile = ".snapshot.json"

var (
	// ErrNoBackup is returned when there is no snapshot to restore or inspect.
	ErrNoBackup = errors.New("no backup found")
	// ErrInvalidPath is returned for absolute or escaping backup paths.
	ErrInvalidPath = errors.New("invalid backup path")
)

// Snapshot describes the contents of the backup directory.
type Snapshot struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	LauncherVersion string    `json:"launcher_version"`
	Files           []string  `json:"files"`
	Skipped         []string  `json:"skipped,omitempty"`
	Size            int64     `json:"size"`
}

// Manager handles backup operations.
type Manager struct {
	installDir string
	backupDir  string
	version    string
	now        func() time.Time
}

// NewManager creates a backup manager for the given installation.
func NewManager(installDir, backupDir, version string) *Manager {
	return &Manager{
		installDir: installDir,
		backupDir:  backupDir,
		version:    version,
		now:        time.Now,
	}
}

// BackupDir returns the backup directory path.
func (m *Manager) BackupDir() string {
	return m.backupDir
}

// Backup replaces the snapshot with fresh copies of files. Paths are relative
// to the installation directory; paths that do not exist are skipped.
// Directories are copied recursively.
func (m *Manager) Backup(files []string) (*Snapshot, error) {
	paths, err := normalizePaths(files)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(m.backupDir); err != nil {
		return nil, fmt.Errorf("failed to remove old backup: %w", err)
	}
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	snap := &Snapshot{
		ID:              uuid.NewString(),
		CreatedAt:       m.now().UTC(),
		LauncherVersion: m.version,
		Files:           []string{},
	}

	for _, rel := range paths {
		src := filepath.Join(m.installDir, rel)
		info, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				snap.Skipped = append(snap.Skipped, filepath.ToSlash(rel))
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", rel, err)
		}

		if !info.IsDir() {
			if err := copyFile(src, filepath.Join(m.backupDir, rel), info); err != nil {
				return nil, err
			}
			snap.Files = append(snap.Files, filepath.ToSlash(rel))
			snap.Size += info.Size()
			continue
		}

		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			inner, err := filepath.Rel(m.installDir, path)
			if err != nil {
				return err
			}
			if err := copyFile(path, filepath.Join(m.backupDir, inner), fi); err != nil {
				return err
			}
			snap.Files = append(snap.Files, filepath.ToSlash(inner))
			snap.Size += fi.Size()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to back up %s: %w", rel, err)
		}
	}

	if err := m.writeMetadata(snap); err != nil {
		return nil, err
	}

	log.WithField("snapshot", snap.ID).Infof("backed up %d files (%d skipped)", len(snap.Files), len(snap.Skipped))
	return snap, nil
}

// Restore copies every file in the backup directory back over the
// installation and returns how many were restored. It keeps going after a
// per-file failure and reports all of them together.
func (m *Manager) Restore() (int, error) {
	if _, err := os.Stat(m.backupDir); err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoBackup
		}
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var result *multierror.Error
	restored := 0

	walkErr := filepath.WalkDir(m.backupDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result = multierror.Append(result, err)
			if d != nil && d.IsDir() && path != m.backupDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(m.backupDir, path)
		if err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		if rel == MetadataFile {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		if err := copyFile(path, filepath.Join(m.installDir, rel), info); err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		restored++
		return nil
	})
	if walkErr != nil {
		result = multierror.Append(result, walkErr)
	}

	if err := result.ErrorOrNil(); err != nil {
		log.Errorf("restored %d files with errors: %v", restored, err)
		return restored, fmt.Errorf("restore incomplete: %w", err)
	}

	log.Infof("restored %d files from %s", restored, m.backupDir)
	return restored, nil
}

// Snapshot returns the metadata of the current snapshot. A backup directory
// without readable metadata is described by walking its contents.
func (m *Manager) Snapshot() (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(m.backupDir, MetadataFile))
	if err == nil {
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return &snap, nil
		}
		log.Warnf("ignoring corrupt snapshot metadata in %s", m.backupDir)
	}

	info, statErr := os.Stat(m.backupDir)
	if statErr != nil || !info.IsDir() {
		return nil, ErrNoBackup
	}

	snap := &Snapshot{Files: []string{}, CreatedAt: info.ModTime().UTC()}
	walkErr := filepath.WalkDir(m.backupDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(m.backupDir, path)
		if err != nil || rel == MetadataFile {
			return err
		}
		if fi, err := d.Info(); err == nil {
			snap.Size += fi.Size()
		}
		snap.Files = append(snap.Files, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", walkErr)
	}
	return snap, nil
}

// Clear removes the snapshot. A missing snapshot is not an error.
func (m *Manager) Clear() error {
	if err := os.RemoveAll(m.backupDir); err != nil {
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	return nil
}

func (m *Manager) writeMetadata(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.backupDir, MetadataFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}
	return nil
}

// normalizePaths cleans, deduplicates and validates installation-relative paths.
func normalizePaths(files []string) ([]string, error) {
	cleaned := lo.FilterMap(files, func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return filepath.Clean(filepath.FromSlash(p)), p != ""
	})
	for _, p := range cleaned {
		if err := ValidatePath(p); err != nil {
			return nil, err
		}
	}
	return lo.Uniq(cleaned), nil
}

// ValidatePath rejects paths that are absolute or leave the installation directory.
func ValidatePath(p string) error {
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == "." || filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	if clean == MetadataFile {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidPath, p)
	}
	return nil
}

// copyFile copies src to dst through a temporary sibling, preserving mode and
// modification time.
func copyFile(src, dst string, info fs.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", dst, err)
	}
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set times on %s: %w", dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dst, err)
	}
	return nil
}
