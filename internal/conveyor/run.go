package conveyor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"vitrine/internal/logging"
	"vitrine/internal/records"
	"vitrine/internal/services"
	"vitrine/internal/stage"
)

// RunOnce executes one poll cycle: fetch a batch of unfinished records and
// advance each one by a single stage, sequentially. Per-record failures
// never abort the cycle.
func (m *Manager) RunOnce(ctx context.Context) error {
	batch, err := m.store.NextBatch(ctx, m.batchSize)
	if err != nil {
		return fmt.Errorf("fetch batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}
	m.logger.Debug("processing batch", logging.Int("records", len(batch)))

	for _, product := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.processRecord(ctx, product)
	}
	return nil
}

// processRecord claims the record, executes its next unmet stage, and
// persists the outcome. A version conflict means another instance touched
// the record; it is skipped and picked up on a later poll.
func (m *Manager) processRecord(ctx context.Context, product *records.Product) {
	handler := m.nextHandler(product)
	if handler == nil {
		m.finishRecord(ctx, product)
		return
	}

	ctx = services.WithRecordID(ctx, product.ID)
	ctx = services.WithStage(ctx, handler.Name())
	logger := logging.WithContext(ctx, m.logger)

	product.Status = records.StatusProcessing
	if err := m.store.Update(ctx, product); err != nil {
		if errors.Is(err, records.ErrVersionConflict) {
			logger.Warn("record claimed elsewhere, skipping")
			return
		}
		logger.Error("claim record", logging.Error(err))
		return
	}

	logger.Info("stage started", logging.String("product", product.Name))
	err := handler.Execute(ctx, product)
	if err != nil {
		m.recordFailure(ctx, product, handler, err)
		return
	}

	product.Attempts = 0
	product.NextRetryAt = nil
	if product.AllStagesDone() {
		product.Status = records.StatusDone
		product.LogEvent("all stages complete")
	} else {
		product.Status = records.StatusIdle
	}
	if err := m.store.Update(ctx, product); err != nil {
		logger.Error("persist stage result", logging.Error(err))
		return
	}
	logger.Info("stage complete", logging.String("status", string(product.Status)))

	if handler.Name() == "publisher" && product.KaspiCreated {
		m.regenerateFeed(ctx, logger)
	}
}

// nextHandler picks the first stage with unmet work, preserving chain order.
func (m *Manager) nextHandler(product *records.Product) stage.Handler {
	for _, handler := range m.handlers {
		if handler.Applies(product) {
			return handler
		}
	}
	return nil
}

// finishRecord handles a batch record with no applicable stage left: all
// flags are set but the status has not caught up yet.
func (m *Manager) finishRecord(ctx context.Context, product *records.Product) {
	if !product.AllStagesDone() || product.Status == records.StatusDone {
		return
	}
	product.Status = records.StatusDone
	if err := m.store.Update(ctx, product); err != nil {
		m.logger.Error("mark record done", logging.Int64("record_id", product.ID), logging.Error(err))
	}
}

// recordFailure stores the stage error on the record. Restricted matches
// close the record permanently; everything else schedules a backoff retry
// and lands in quarantine after the attempt ceiling.
func (m *Manager) recordFailure(ctx context.Context, product *records.Product, handler stage.Handler, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)
	product.LogEvent(handler.Name() + " failed: " + stageErr.Error())

	if services.IsTerminal(stageErr) {
		product.Status = records.StatusError
		product.IsClosed = true
		product.NextRetryAt = nil
		logger.Info("record closed: restricted category", logging.String("product", product.Name))
	} else {
		product.Attempts++
		if product.Attempts >= m.maxAttempts {
			product.Status = records.StatusQuarantined
			product.NextRetryAt = nil
			product.LogEvent(fmt.Sprintf("quarantined after %d attempts", product.Attempts))
			logger.Warn("record quarantined",
				logging.Int("attempts", product.Attempts),
				logging.Error(stageErr))
		} else {
			retryAt := time.Now().UTC().Add(m.retryDelay(product.Attempts))
			product.Status = records.StatusError
			product.NextRetryAt = &retryAt
			logger.Error("stage failed",
				logging.Int("attempts", product.Attempts),
				logging.String("next_retry_at", retryAt.Format(time.RFC3339)),
				logging.Error(stageErr))
		}
	}

	if err := m.store.Update(ctx, product); err != nil {
		logger.Error("persist stage failure", logging.Error(err))
	}
}

// retryDelay computes the exponential backoff delay for the given attempt
// number. Randomization is disabled so retry scheduling stays predictable.
func (m *Manager) retryDelay(attempt int) time.Duration {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.backoffInitial
	policy.MaxInterval = m.backoffMax
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()

	delay := policy.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = policy.NextBackOff()
	}
	if delay == backoff.Stop || delay > m.backoffMax {
		delay = m.backoffMax
	}
	return delay
}

// regenerateFeed rebuilds the consolidated feed after a successful listing
// submission. Feed failure is logged but never fails the stage: the
// listing already went through.
func (m *Manager) regenerateFeed(ctx context.Context, logger *slog.Logger) {
	if m.feed == nil {
		return
	}
	published, err := m.store.Published(ctx)
	if err != nil {
		logger.Error("load published records for feed", logging.Error(err))
		return
	}
	if err := m.feed.Regenerate(published); err != nil {
		logger.Error("regenerate feed", logging.Error(err))
	}
}
