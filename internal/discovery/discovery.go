// Package discovery runs the candidate-product job queue: keyword search
// jobs against the source storefront feed new product records into the
// conveyor. A small worker pool keeps searches from blocking the poll
// loop.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"vitrine/internal/config"
	"vitrine/internal/logging"
	"vitrine/internal/records"
	"vitrine/internal/services"
	"vitrine/internal/services/kaspi"
)

// Source searches the storefront catalog for candidate products.
type Source interface {
	Search(ctx context.Context, query string, page, pageSize int) ([]kaspi.SearchResult, error)
}

// Runner claims discovery jobs and inserts candidate records.
type Runner struct {
	store    *records.Store
	source   Source
	logger   *slog.Logger
	workers  int
	pageSize int
	idle     time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewRunner(store *records.Store, source Source, cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := &Runner{
		store:    store,
		source:   source,
		logger:   logging.NewComponentLogger(logger, "discovery"),
		workers:  1,
		pageSize: 20,
		idle:     5 * time.Second,
	}
	if cfg != nil {
		if cfg.Discovery.Workers > 0 {
			runner.workers = cfg.Discovery.Workers
		}
		if cfg.Discovery.PageSize > 0 {
			runner.pageSize = cfg.Discovery.PageSize
		}
	}
	// Search jobs hit the same storefront the conveyor publishes to; more
	// than two concurrent searches trips its rate limits.
	if runner.workers > 2 {
		runner.workers = 2
	}
	return runner
}

// Start launches the worker pool. Jobs stuck in processing from a prior
// crash are re-queued first.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	reset, err := r.store.ResetStuckJobs(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		r.logger.Info("stuck jobs re-queued", logging.Int64("count", reset))
	}

	workerCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(workerCtx, i)
	}
	r.logger.Info("discovery started", logging.Int("workers", r.workers))
	return nil
}

// Stop halts the pool and waits for in-flight jobs.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	logger := r.logger.With(logging.Int("worker", id))
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := r.store.ClaimNextJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("claim job", logging.Error(err))
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.idle):
			}
			continue
		}
		r.runJob(ctx, logger, job)
	}
}

// runJob executes one search page and inserts every new candidate.
// Duplicate external ids are ignored so re-running a query is safe.
// Jobs carry 1-based page numbers; the storefront API counts from zero.
func (r *Runner) runJob(ctx context.Context, logger *slog.Logger, job *records.Job) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger = logging.WithContext(ctx, logger)
	logger.Info("job started",
		logging.Int64("job_id", job.ID),
		logging.String("query", job.Query),
		logging.Int("page", job.Page))

	results, err := r.source.Search(ctx, job.Query, job.Page-1, r.pageSize)
	if err != nil {
		logger.Error("search failed", logging.Int64("job_id", job.ID), logging.Error(err))
		if finishErr := r.store.FinishJob(ctx, job.ID, records.JobError, err.Error()); finishErr != nil {
			logger.Error("finish job", logging.Error(finishErr))
		}
		return
	}

	inserted := 0
	for _, result := range results {
		product, err := candidateFromResult(result)
		if err != nil {
			logger.Warn("candidate skipped", logging.String("external_id", result.ExternalID), logging.Error(err))
			continue
		}
		ok, err := r.store.InsertCandidate(ctx, product)
		if err != nil {
			logger.Error("insert candidate", logging.Error(err))
			continue
		}
		if ok {
			inserted++
		}
	}

	message := fmt.Sprintf("%d results, %d new", len(results), inserted)
	if err := r.store.FinishJob(ctx, job.ID, records.JobCompleted, message); err != nil {
		logger.Error("finish job", logging.Error(err))
		return
	}
	logger.Info("job complete", logging.Int64("job_id", job.ID), logging.String("outcome", message))
}

func candidateFromResult(result kaspi.SearchResult) (*records.Product, error) {
	externalID, err := strconv.ParseInt(result.ExternalID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse external id %q: %w", result.ExternalID, err)
	}
	return &records.Product{
		ExternalID:  externalID,
		Article:     result.Article,
		Name:        result.Name,
		Brand:       result.Brand,
		Description: result.Description,
		Price:       result.Price,
		Images:      result.Images,
		RawAttrs:    result.RawAttrs,
		Status:      records.StatusIdle,
	}, nil
}
