// Package conveyor drives product records through the publishing stages.
// A single poll loop fetches a bounded batch of unfinished records,
// executes the next unmet stage for each one sequentially, and persists
// the outcome with optimistic concurrency.
package conveyor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vitrine/internal/config"
	"vitrine/internal/feed"
	"vitrine/internal/logging"
	"vitrine/internal/records"
	"vitrine/internal/stage"
)

// Manager owns the poll loop and the ordered stage chain.
type Manager struct {
	store    *records.Store
	handlers []stage.Handler
	feed     *feed.Writer
	logger   *slog.Logger

	pollInterval   time.Duration
	errorInterval  time.Duration
	batchSize      int
	maxAttempts    int
	backoffInitial time.Duration
	backoffMax     time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewManager wires the conveyor. Handlers run in the given order; each
// record advances through the first handler whose Applies reports work.
func NewManager(store *records.Store, handlers []stage.Handler, feedWriter *feed.Writer, cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	manager := &Manager{
		store:          store,
		handlers:       handlers,
		feed:           feedWriter,
		logger:         logging.NewComponentLogger(logger, "conveyor"),
		pollInterval:   5 * time.Second,
		errorInterval:  30 * time.Second,
		batchSize:      10,
		maxAttempts:    12,
		backoffInitial: 30 * time.Second,
		backoffMax:     time.Hour,
	}
	if cfg != nil {
		manager.pollInterval = cfg.Conveyor.PollIntervalDuration()
		manager.errorInterval = cfg.Conveyor.ErrorRetryIntervalDuration()
		manager.batchSize = cfg.Conveyor.BatchSize
		manager.maxAttempts = cfg.Conveyor.MaxAttempts
		manager.backoffInitial = cfg.Conveyor.BackoffInitialDuration()
		manager.backoffMax = cfg.Conveyor.BackoffMaxDuration()
	}
	return manager
}

// Start launches the poll loop. Records stuck in processing from a prior
// crash are returned to error before the first poll.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		m.logger.Info("stuck records reset for retry", logging.Int64("count", reset))
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.run(loopCtx)
	return nil
}

// Stop halts the poll loop and waits for the in-flight batch to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	m.logger.Info("conveyor started",
		logging.Duration("poll_interval", m.pollInterval),
		logging.Int("batch_size", m.batchSize))

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("poll cycle failed", logging.Error(err))
			select {
			case <-ctx.Done():
				m.logger.Info("conveyor stopped")
				return
			case <-time.After(m.errorInterval):
				continue
			}
		}
		select {
		case <-ctx.Done():
			m.logger.Info("conveyor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Health reports readiness for every stage collaborator.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	health := make([]stage.Health, 0, len(m.handlers))
	for _, handler := range m.handlers {
		health = append(health, handler.HealthCheck(ctx))
	}
	return health
}
