package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/plxgio/sakura-launcher/internal/interactive"
	"github.com/plxgio/sakura-launcher/internal/output"
	"github.com/plxgio/sakura-launcher/internal/types"
	"github.com/plxgio/sakura-launcher/internal/update"
)

const eventBuffer = 64

func newRunCmd() *cobra.Command {
	var noRestart bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the launcher and keep it up to date",
		Long: `Run starts the launcher host loop.

The first update check happens after startup_delay, then every check_interval.
When a new version is found you are asked whether to install it now, later,
or not at all. After a successful update the launcher restarts itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), noRestart)
		},
	}

	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "Exit instead of restarting after an update")

	return cmd
}

func runHost(ctx context.Context, noRestart bool) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}

	events := make(chan update.Event, eventBuffer)
	svc, err := NewLauncherService(cfg, cfgPath, launcherVersion, launcherCommit, update.NewChannelObserver(events))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompter := interactive.NewPrompter()
	h := &host{
		svc:     svc,
		events:  events,
		printer: output.NewEventPrinter(os.Stdout, interactive.IsTerminal()),
		decide:  prompter.PromptUpdate,
	}

	log.WithField("version", launcherVersion).Infof("launcher started in %s", cfg.InstallDir)
	updated, err := h.loop(ctx, cfg.StartupDelayDuration(), cfg.CheckIntervalDuration())
	if err != nil || !updated {
		return err
	}
	if noRestart {
		log.Info("update installed, exiting without restart")
		return nil
	}
	return update.Restart()
}

// host owns presentation: it is the only goroutine that reads events and
// talks to the user. Checks and applies run on worker goroutines.
type host struct {
	svc     *LauncherService
	events  <-chan update.Event
	printer *output.EventPrinter
	decide  func(current, version, changelog string) interactive.Decision
}

// loop runs until ctx is cancelled or an update is installed, in which case
// it reports true.
func (h *host) loop(ctx context.Context, delay, interval time.Duration) (bool, error) {
	orch := h.svc.Orchestrator()
	timer := time.NewTimer(delay)
	defer timer.Stop()

	applyDone := make(chan error, 1)
	applying := false
	// An apply is never interrupted mid-flight; shutdown waits for it.
	applyCtx := context.WithoutCancel(ctx)
	startApply := func() {
		applying = true
		go func() {
			_, err := orch.Apply(applyCtx)
			applyDone <- err
		}()
	}

	// A pending update from an earlier session is offered before checking.
	if p, ok := orch.Pending(); ok {
		if h.offer(p.RemoteVersion, p.Changelog) {
			startApply()
		}
	}

	for {
		select {
		case <-ctx.Done():
			if applying {
				log.Info("waiting for the update in progress to finish")
				for {
					select {
					case e := <-h.events:
						h.printer.Print(e)
					case err := <-applyDone:
						h.drain()
						if err != nil {
							log.Errorf("update failed: %v", err)
						} else {
							log.Info("update installed, it takes effect on the next start")
						}
						return false, nil
					}
				}
			}
			return false, nil

		case <-timer.C:
			if !applying {
				go func() {
					if _, err := orch.Check(ctx, false); err != nil && !errors.Is(err, update.ErrBusy) {
						log.Warnf("update check failed: %v", err)
					}
				}()
			}
			timer.Reset(interval)

		case e := <-h.events:
			h.printer.Print(e)
			if e.Kind == types.EventUpdateAvailable && !applying {
				if h.offer(e.Version, e.Changelog) {
					startApply()
				}
			}

		case err := <-applyDone:
			applying = false
			h.drain()
			if err == nil {
				return true, nil
			}
			log.Errorf("update failed: %v", err)
		}
	}
}

// offer asks the user about version and records the answer. It reports
// whether the update should be applied now.
func (h *host) offer(version, changelog string) bool {
	orch := h.svc.Orchestrator()
	switch h.decide(orch.CurrentVersion(), version, changelog) {
	case interactive.DecisionUpdate:
		return true
	case interactive.DecisionCancel:
		// Abandon and Defer report through the observer; keep them off
		// this goroutine so a full event buffer cannot stall it.
		go func() {
			if err := orch.Abandon(); err != nil {
				log.Warnf("failed to discard pending update: %v", err)
			}
		}()
	default:
		go orch.Defer()
	}
	return false
}

// drain prints events that are already queued.
func (h *host) drain() {
	for {
		select {
		case e := <-h.events:
			h.printer.Print(e)
		default:
			return
		}
	}
}
