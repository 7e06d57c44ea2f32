// Package cmd contains the CLI command implementations.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/plxgio/sakura-launcher/internal/backup"
	"github.com/plxgio/sakura-launcher/internal/config"
	"github.com/plxgio/sakura-launcher/internal/output"
	"github.com/plxgio/sakura-launcher/internal/update"
)

// LauncherService wires an installation's config to the update engine and
// answers the questions the commands ask about it.
type LauncherService struct {
	cfg          *config.Config
	configFile   string
	version      string
	commit       string
	state        update.StateStore
	backups      *backup.Manager
	orchestrator *update.Orchestrator
}

// NewLauncherService creates a service with the default collaborators for cfg.
func NewLauncherService(cfg *config.Config, configFile, version, commit string, observer update.Observer) (*LauncherService, error) {
	state := update.NewFileStateStore(cfg.LastCheckFile(), cfg.PendingFile())
	backups := backup.NewManager(cfg.InstallDir, cfg.BackupDir(), version)
	downloader := update.NewHTTPDownloader(version).WithRetries(cfg.DownloadRetries, update.DefaultRetryDelay)

	return NewLauncherServiceWithDeps(cfg, configFile, version, commit, state, backups, downloader, observer)
}

// NewLauncherServiceWithDeps creates a service with custom dependencies (for testing).
func NewLauncherServiceWithDeps(
	cfg *config.Config,
	configFile, version, commit string,
	state update.StateStore,
	backups *backup.Manager,
	downloader update.Downloader,
	observer update.Observer,
) (*LauncherService, error) {
	orch, err := update.NewOrchestrator(update.Options{
		CurrentVersion:       version,
		ManifestURL:          cfg.ManifestURL(),
		CheckInterval:        cfg.CheckIntervalDuration(),
		FetchTimeout:         cfg.FetchTimeoutDuration(),
		DownloadTimeout:      cfg.DownloadTimeoutDuration(),
		ApplyTimeout:         cfg.ApplyTimeoutDuration(),
		DownloadDir:          cfg.TempDir(),
		ArchiveName:          cfg.ArchiveFile,
		BackupFiles:          cfg.BackupFiles,
		ClearBackupOnSuccess: cfg.ClearBackupOnSuccess,
		Fetcher:              update.NewHTTPFetcher(version),
		Downloader:           downloader,
		Backuper:             backups,
		Applier:              update.NewExtractor(cfg.InstallDir, config.ManagedPaths()...),
		State:                state,
		Observer:             observer,
	})
	if err != nil {
		return nil, err
	}

	return &LauncherService{
		cfg:          cfg,
		configFile:   configFile,
		version:      version,
		commit:       commit,
		state:        state,
		backups:      backups,
		orchestrator: orch,
	}, nil
}

// Orchestrator returns the update engine.
func (s *LauncherService) Orchestrator() *update.Orchestrator {
	return s.orchestrator
}

// Check runs one update check and summarizes it.
func (s *LauncherService) Check(ctx context.Context, force bool) (output.CheckReport, error) {
	res, err := s.orchestrator.Check(ctx, force)
	if err != nil {
		return output.CheckReport{}, err
	}

	report := output.CheckReport{
		CurrentVersion: res.CurrentVersion,
		Available:      res.Available,
		Skipped:        res.Skipped,
	}
	if res.Manifest != nil {
		report.RemoteVersion = res.Manifest.Version
		report.Changelog = res.Manifest.Changelog
	}
	if res.Skipped {
		if p, ok := s.orchestrator.Pending(); ok {
			report.Available = true
			report.RemoteVersion = p.RemoteVersion
			report.Changelog = p.Changelog
		}
	}
	return report, nil
}

// Status describes the installation.
func (s *LauncherService) Status() output.StatusReport {
	report := output.StatusReport{
		Version:     s.version,
		Commit:      lo.Ternary(s.commit == "none", "", s.commit),
		InstallDir:  s.cfg.InstallDir,
		ManifestURL: s.cfg.ManifestURL(),
		ConfigFile:  s.configFile,
	}

	if last, ok := s.state.LastCheck(); ok {
		next := last.Add(s.cfg.CheckIntervalDuration())
		report.LastCheck = &last
		report.NextCheck = &next
	}

	if p, ok := s.orchestrator.Pending(); ok {
		report.Pending = &output.PendingInfo{
			Version:     p.RemoteVersion,
			Changelog:   p.Changelog,
			DownloadURL: p.DownloadURL,
			FetchedAt:   p.FetchedAt,
		}
	}

	snap, err := s.backups.Snapshot()
	switch {
	case err == nil:
		report.Backup = &output.BackupInfo{
			ID:              snap.ID,
			CreatedAt:       snap.CreatedAt,
			LauncherVersion: snap.LauncherVersion,
			Files:           snap.Files,
			Size:            snap.Size,
		}
	case !errors.Is(err, backup.ErrNoBackup):
		log.Warnf("failed to read backup: %v", err)
	}

	return report
}

// Snapshot returns the backup that Restore would apply.
func (s *LauncherService) Snapshot() (*backup.Snapshot, error) {
	return s.backups.Snapshot()
}

// Restore rolls the installation back to the backup snapshot.
func (s *LauncherService) Restore(ctx context.Context) error {
	if err := s.orchestrator.Rollback(ctx); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	return nil
}
