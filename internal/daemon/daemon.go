// Package daemon assembles the conveyor process: external clients, the
// record store, the stage chain, discovery workers, and periodic
// housekeeping, guarded by a single-instance file lock.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"vitrine/internal/classify"
	"vitrine/internal/config"
	"vitrine/internal/conveyor"
	"vitrine/internal/discovery"
	"vitrine/internal/feed"
	"vitrine/internal/inventory"
	"vitrine/internal/logging"
	"vitrine/internal/publisher"
	"vitrine/internal/records"
	"vitrine/internal/services/kaspi"
	"vitrine/internal/services/llm"
	"vitrine/internal/services/moysklad"
	"vitrine/internal/stage"
	"vitrine/internal/stocks"
)

const lockFileName = "vitrine.lock"

// Options toggles optional subsystems for a daemon run.
type Options struct {
	SkipDiscovery bool
}

// Daemon owns the full process lifecycle.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	opts   Options

	lock      *flock.Flock
	store     *records.Store
	moysklad  *moysklad.Client
	kaspi     *kaspi.Client
	inventory *inventory.Handler
	conveyor  *conveyor.Manager
	discovery *discovery.Runner
	feed      *feed.Writer

	mu          sync.Mutex
	houseCancel context.CancelFunc
	houseDone   chan struct{}
	running     bool
}

// New builds the daemon and opens the record store. External lookups the
// stages require run later, in Start.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("daemon: configuration required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := records.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	moyskladClient := moysklad.NewConfiguredClient(cfg)
	kaspiClient := kaspi.NewConfiguredClient(cfg)
	llmClient := llm.NewConfiguredClient(cfg)

	engine := classify.NewEngine(kaspiClient, llmClient, cfg, logger)
	inventoryHandler := inventory.NewHandler(moyskladClient, cfg, logger)
	feedWriter := feed.NewWriter(cfg, logger)

	handlers := []stage.Handler{
		inventoryHandler,
		stocks.NewHandler(moyskladClient, cfg, logger),
		publisher.NewHandler(engine, kaspiClient, cfg, logger),
	}

	daemon := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		opts:      opts,
		lock:      flock.New(filepath.Join(cfg.Paths.DataDir, lockFileName)),
		store:     store,
		moysklad:  moyskladClient,
		kaspi:     kaspiClient,
		inventory: inventoryHandler,
		conveyor:  conveyor.NewManager(store, handlers, feedWriter, cfg, logger),
		feed:      feedWriter,
	}
	if cfg.Discovery.Enabled && !opts.SkipDiscovery {
		daemon.discovery = discovery.NewRunner(store, kaspiClient, cfg, logger)
	}
	return daemon, nil
}

// Store exposes the record store for CLI commands running in-process.
func (d *Daemon) Store() *records.Store { return d.store }

// Conveyor exposes the poll loop manager, mainly for single-pass runs.
func (d *Daemon) Conveyor() *conveyor.Manager { return d.conveyor }

// Prepare runs the fatal startup lookups without launching the loops.
// Single-pass runs call this before RunOnce.
func (d *Daemon) Prepare(ctx context.Context) error {
	return d.inventory.Prepare(ctx, d.moysklad, d.cfg)
}

// Start acquires the instance lock, resolves the startup lookups, and
// launches the conveyor, discovery workers, and the housekeeping timer.
// A failed inventory lookup aborts the run; the stages cannot degrade
// around a missing product folder or price type.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance holds %s", d.lock.Path())
	}

	if err := d.inventory.Prepare(ctx, d.moysklad, d.cfg); err != nil {
		d.unlock()
		return err
	}

	if err := d.conveyor.Start(ctx); err != nil {
		d.unlock()
		return err
	}
	if d.discovery != nil {
		if err := d.discovery.Start(ctx); err != nil {
			d.conveyor.Stop()
			d.unlock()
			return err
		}
	}

	houseCtx, cancel := context.WithCancel(ctx)
	d.houseCancel = cancel
	d.houseDone = make(chan struct{})
	go d.housekeeping(houseCtx)

	d.running = true
	d.logger.Info("daemon started",
		logging.String("data_dir", d.cfg.Paths.DataDir),
		logging.Bool("discovery", d.discovery != nil))
	return nil
}

// Stop shuts the subsystems down in reverse start order and releases the
// instance lock. The record store stays open until Close.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	d.houseCancel()
	<-d.houseDone
	if d.discovery != nil {
		d.discovery.Stop()
	}
	d.conveyor.Stop()
	d.unlock()
	d.running = false
	d.logger.Info("daemon stopped")
}

// Close releases the record store. Call after Stop.
func (d *Daemon) Close() error {
	return d.store.Close()
}

// Health reports stage collaborator readiness.
func (d *Daemon) Health(ctx context.Context) []stage.Health {
	return d.conveyor.Health(ctx)
}

func (d *Daemon) unlock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release instance lock", logging.Error(err))
	}
}
