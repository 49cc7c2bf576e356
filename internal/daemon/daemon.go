// Package daemon wires the voxd components together and owns their
// lifecycle: config store and reloader, dedup store, clipboard
// coordinator, session watcher, action selector, and control socket.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voxd/internal/action"
	"voxd/internal/clipboard"
	"voxd/internal/config"
	"voxd/internal/control"
	"voxd/internal/dedup"
	"voxd/internal/history"
	"voxd/internal/logging"
	"voxd/internal/notify"
	"voxd/internal/runner"
	"voxd/internal/simulator"
	"voxd/internal/watcher"
)

// Daemon is the assembled process.
type Daemon struct {
	cfgs     *config.Store
	reloader *config.Reloader
	store    *dedup.Store
	clip     *clipboard.Coordinator
	watch    *watcher.SessionWatcher
	selector *action.Selector
	server   *control.Server
}

// New builds a daemon from a loaded configuration. configPath enables
// live reload; empty disables it.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfgs := config.NewStore(cfg)

	store, err := dedup.NewStore(cfg.DedupPath())
	if err != nil {
		return nil, fmt.Errorf("dedup store: %w", err)
	}

	sim := simulator.New(cfg.Simulator)
	clip := clipboard.New(sim, cfgs)
	runners := runner.ForConfig(cfg.Simulator)
	selector := action.NewSelector(cfgs, clip, sim, store, runners, notify.Log{}, history.New())

	watch, err := watcher.New(cfgs, store, clip, sim, selector)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("session watcher: %w", err)
	}
	selector.OnDone = watch.SessionDone
	selector.WatchingFn = func() bool { return true }

	d := &Daemon{
		cfgs:     cfgs,
		store:    store,
		clip:     clip,
		watch:    watch,
		selector: selector,
		server:   control.NewServer(cfg.SocketPath(), selector),
	}

	if configPath != "" {
		rl, err := config.NewReloader(cfgs, configPath)
		if err != nil {
			logging.Get(logging.CategoryConfig).Warn("config reload disabled: %v", err)
		} else {
			d.reloader = rl
		}
	}
	return d, nil
}

// Run starts every component and blocks until the context is cancelled
// or a signal arrives. No core error terminates the daemon; only
// startup failures and signals end Run.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.Get(logging.CategoryBoot)
	log.Info("voxd starting (base=%s)", d.cfgs.Snapshot().BasePath)

	d.clip.Start()
	if err := d.watch.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := d.server.Start(); err != nil {
		return fmt.Errorf("start control server: %w", err)
	}
	if d.reloader != nil {
		_ = d.reloader.Start()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})
	g.Go(func() error {
		return d.heartbeat(ctx)
	})

	err := g.Wait()
	log.Info("voxd shutting down")
	d.shutdown()
	if err == context.Canceled {
		return nil
	}
	return err
}

// heartbeat logs a liveness line with the tracked-session count. Cheap
// enough to run forever and the first thing to check in a stuck-daemon
// report.
func (d *Daemon) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := d.watch.GetStats()
			logging.Get(logging.CategoryBoot).Debug(
				"heartbeat: tracked=%d appeared=%d signaled=%d done=%d history=%d",
				len(d.watch.TrackedSessions()), stats.SessionsAppeared,
				stats.SessionsSignaled, stats.SessionsDone, d.clip.HistoryLen())
		}
	}
}

func (d *Daemon) shutdown() {
	if d.reloader != nil {
		d.reloader.Stop()
	}
	d.server.Stop()
	d.watch.Stop()
	d.selector.Stop()
	d.clip.Stop()
	if err := d.store.Close(); err != nil {
		logging.Get(logging.CategoryStore).Warn("close dedup store: %v", err)
	}
	logging.Sync()
}
