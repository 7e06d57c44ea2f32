package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/plxgio/sakura-launcher/internal/types"
)

// Message sent with Finished(true) when a forced check finds nothing newer.
const MessageUpToDate = "already on the latest version"

// Options configures an Orchestrator.
type Options struct {
	CurrentVersion string
	ManifestURL    string
	CheckInterval  time.Duration
	FetchTimeout   time.Duration
	// Zero means unbounded.
	DownloadTimeout time.Duration
	ApplyTimeout    time.Duration

	// DownloadDir is emptied before every download and removed after a
	// successful apply.
	DownloadDir          string
	ArchiveName          string
	BackupFiles          []string
	ClearBackupOnSuccess bool

	Fetcher    Fetcher
	Downloader Downloader
	Backuper   Backuper
	Applier    Applier
	State      StateStore
	Observer   Observer

	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator drives the check and apply cycles and reports every step to
// its Observer. At most one check and one apply run at a time; extra calls
// return ErrBusy.
type Orchestrator struct {
	opts   Options
	events emitter

	checking atomic.Bool
	applying atomic.Bool

	mu    sync.Mutex
	stage types.Stage
}

// NewOrchestrator validates opts and creates an orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	var missing []string
	if opts.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if opts.Downloader == nil {
		missing = append(missing, "downloader")
	}
	if opts.Backuper == nil {
		missing = append(missing, "backuper")
	}
	if opts.Applier == nil {
		missing = append(missing, "applier")
	}
	if opts.State == nil {
		missing = append(missing, "state store")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("orchestrator: missing %v", missing)
	}
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("orchestrator: download directory is required")
	}
	if opts.ArchiveName == "" {
		opts.ArchiveName = "launcher_update.zip"
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		opts:   opts,
		events: emitter{observer: opts.Observer, now: opts.Now},
		stage:  types.StageIdle,
	}, nil
}

// Stage returns the current stage of the apply cycle.
func (o *Orchestrator) Stage() types.Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// CurrentVersion returns the running launcher version.
func (o *Orchestrator) CurrentVersion() string {
	return o.opts.CurrentVersion
}

// Check fetches the manifest and records a pending update when the remote
// version is newer. Unless force is set, it does nothing while the check
// interval has not elapsed since the last check.
func (o *Orchestrator) Check(ctx context.Context, force bool) (*CheckResult, error) {
	if !o.checking.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.checking.Store(false)

	result := &CheckResult{CurrentVersion: o.opts.CurrentVersion}
	now := o.opts.Now()
	if !force && !o.opts.State.ShouldCheck(now, o.opts.CheckInterval) {
		result.Skipped = true
		return result, nil
	}

	logger := log.WithFields(log.Fields{"cycle": uuid.NewString(), "url": o.opts.ManifestURL})
	defer func() {
		if err := o.opts.State.RecordCheck(o.opts.Now()); err != nil {
			logger.Warnf("failed to record check time: %v", err)
		}
	}()

	o.events.status("Checking for updates...")
	o.events.status("Connecting to %s", o.opts.ManifestURL)

	manifest, err := o.opts.Fetcher.Fetch(ctx, o.opts.ManifestURL, o.opts.FetchTimeout)
	if err != nil {
		logger.Warnf("update check failed: %v", err)
		if errors.Is(err, ErrConnectivity) {
			o.events.status("Connection error: %v", err)
		} else {
			o.events.status("Error: %v", err)
		}
		return nil, err
	}
	result.Manifest = manifest
	o.events.status("Remote version: %s", manifest.Version)

	if _, err := ParseVersion(o.opts.CurrentVersion); err != nil {
		logger.Warnf("running version %q is not comparable: %v", o.opts.CurrentVersion, err)
	}
	if !IsNewer(manifest.Version, o.opts.CurrentVersion) {
		logger.Debugf("remote %s is not newer than %s", manifest.Version, o.opts.CurrentVersion)
		o.events.status("You are on the latest version")
		o.discardStale(logger)
		if force {
			o.events.finished(true, MessageUpToDate)
		}
		return result, nil
	}

	if err := o.opts.State.SavePending(NewPendingUpdate(manifest, now)); err != nil {
		logger.Errorf("failed to save pending update: %v", err)
		o.events.status("Error: %v", err)
		return nil, err
	}

	result.Available = true
	logger.WithField("version", manifest.Version).Info("update available")
	o.events.status("New version available! (%s)", manifest.Version)
	o.events.available(manifest.Version, manifest.Changelog)
	return result, nil
}

// Pending returns the recorded update, if any. A record whose version is not
// newer than the running one is discarded and never returned.
func (o *Orchestrator) Pending() (*PendingUpdate, bool) {
	p, ok := o.opts.State.LoadPending()
	if !ok {
		return nil, false
	}
	if !IsNewer(p.RemoteVersion, o.opts.CurrentVersion) {
		o.discardStale(log.WithField("version", p.RemoteVersion))
		return nil, false
	}
	return p, true
}

// discardStale clears a pending record that no longer names a newer version.
func (o *Orchestrator) discardStale(logger *log.Entry) {
	p, ok := o.opts.State.LoadPending()
	if !ok || IsNewer(p.RemoteVersion, o.opts.CurrentVersion) {
		return
	}
	logger.Infof("discarding pending update %s, running %s", p.RemoteVersion, o.opts.CurrentVersion)
	if err := o.opts.State.ClearPending(); err != nil {
		logger.Warnf("failed to discard pending update: %v", err)
	}
}

// Defer leaves the pending update recorded so it is offered again later.
func (o *Orchestrator) Defer() {
	if p, ok := o.opts.State.LoadPending(); ok {
		o.events.status("Update to %s postponed", p.RemoteVersion)
	}
}

// Abandon discards the pending update.
func (o *Orchestrator) Abandon() error {
	if err := o.opts.State.ClearPending(); err != nil {
		return err
	}
	o.events.status("Update cancelled")
	return nil
}

// Apply downloads, backs up, extracts and cleans up the pending update, and
// returns the version that was installed. An extraction failure restores the
// snapshot taken in the same cycle. The error returned and the Finished
// message are always those of the step that failed.
func (o *Orchestrator) Apply(ctx context.Context) (string, error) {
	if !o.applying.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer o.applying.Store(false)

	pending, ok := o.Pending()
	if !ok {
		o.events.finished(false, ErrNoPendingUpdate.Error())
		return "", ErrNoPendingUpdate
	}
	newVersion := pending.RemoteVersion

	logger := log.WithFields(log.Fields{"cycle": uuid.NewString(), "version": newVersion})
	logger.Infof("applying update %s -> %s", o.opts.CurrentVersion, newVersion)

	o.resetStage()

	// Download
	o.transition(types.StageDownloading)
	if pending.DownloadURL == "" {
		o.events.status("No download URL available")
		return o.fail(logger, newError(KindDownload, "download", errors.New("no download URL available")), false)
	}
	o.events.status("Downloading update...")

	dst := filepath.Join(o.opts.DownloadDir, o.opts.ArchiveName)
	dctx, cancel := withOptionalTimeout(ctx, o.opts.DownloadTimeout)
	archive, err := o.opts.Downloader.Download(dctx, pending.DownloadURL, dst, o.events.progress)
	cancel()
	if err != nil {
		o.events.status("Download failed: %v", err)
		return o.fail(logger, err, false)
	}
	if pending.SHA256 != "" {
		if err := o.opts.Downloader.VerifyChecksum(archive, pending.SHA256); err != nil {
			o.events.status("Download failed: %v", err)
			return o.fail(logger, err, false)
		}
	}
	o.events.status("Download complete")

	// Backup is best effort.
	o.transition(types.StageBackingUp)
	o.events.status("Creating backup...")
	if snap, err := o.opts.Backuper.Backup(o.opts.BackupFiles); err != nil {
		logger.Warnf("backup failed, continuing without it: %v", err)
		o.events.status("Backup failed: %v", err)
		o.events.status("Continuing without backup...")
	} else {
		logger.WithField("snapshot", snap.ID).Debugf("backed up %d files", len(snap.Files))
		o.events.status("Backup created")
	}

	// Extract
	o.transition(types.StageExtracting)
	o.events.status("Applying update...")
	actx, cancel := withOptionalTimeout(ctx, o.opts.ApplyTimeout)
	n, err := o.opts.Applier.Extract(actx, archive, o.events.progress)
	cancel()
	if err != nil {
		o.events.status("Error applying update: %v", err)
		return o.fail(logger, err, true)
	}
	logger.Infof("extracted %d files", n)

	// Cleanup
	o.transition(types.StageCleaningUp)
	if err := o.cleanup(newVersion); err != nil {
		logger.Warnf("cleanup incomplete: %v", err)
	} else {
		o.events.status("Temporary files cleaned up")
	}
	if o.opts.ClearBackupOnSuccess {
		if err := o.opts.Backuper.Clear(); err != nil {
			logger.Warnf("failed to clear backup: %v", err)
		}
	}

	o.transition(types.StageDone)
	o.events.status("Update applied successfully!")
	o.events.finished(true, newVersion)
	logger.Info("update applied")
	return newVersion, nil
}

// Rollback restores the installation from the latest snapshot. It cannot run
// while an apply is in flight.
func (o *Orchestrator) Rollback(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !o.applying.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer o.applying.Store(false)

	n, err := o.restore()
	if err != nil {
		o.events.finished(false, err.Error())
		return err
	}
	o.events.finished(true, fmt.Sprintf("restored %d files", n))
	return nil
}

func (o *Orchestrator) fail(logger *log.Entry, cause error, rollback bool) (string, error) {
	logger.Errorf("update failed during %s: %v", o.Stage(), cause)
	o.transition(types.StageFailed)

	if rollback {
		if _, err := o.restore(); err != nil {
			logger.Errorf("rollback failed: %v", err)
		}
	}

	o.events.finished(false, cause.Error())
	return "", cause
}

func (o *Orchestrator) restore() (int, error) {
	o.events.status("Restoring from backup...")
	n, err := o.opts.Backuper.Restore()
	if err != nil {
		o.events.status("Restore failed: %v", err)
		return n, err
	}
	o.events.status("Restore complete (%d files)", n)
	return n, nil
}

// cleanup removes the download directory and the pending record for
// installed. A record for another version, saved by a check that ran during
// the apply, is kept.
func (o *Orchestrator) cleanup(installed string) error {
	var result *multierror.Error
	if err := os.RemoveAll(o.opts.DownloadDir); err != nil {
		result = multierror.Append(result, newError(KindFilesystem, "remove download directory", err))
	}
	if p, ok := o.opts.State.LoadPending(); ok && p.RemoteVersion != installed {
		log.Debugf("keeping pending update %s", p.RemoteVersion)
		return result.ErrorOrNil()
	}
	if err := o.opts.State.ClearPending(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// resetStage returns a finished cycle to Idle.
func (o *Orchestrator) resetStage() {
	o.mu.Lock()
	current := o.stage
	o.mu.Unlock()
	if current.IsTerminal() {
		o.transition(types.StageIdle)
	}
}

func (o *Orchestrator) transition(next types.Stage) {
	o.mu.Lock()
	prev := o.stage
	if !prev.CanTransitionTo(next) {
		o.mu.Unlock()
		log.Errorf("illegal stage transition %s -> %s", prev, next)
		return
	}
	o.stage = next
	o.mu.Unlock()

	log.WithField("stage", next).Debugf("stage %s -> %s", prev, next)
	o.events.stage(next)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
