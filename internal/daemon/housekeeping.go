package daemon

import (
	"context"
	"errors"
	"time"

	"vitrine/internal/logging"
	"vitrine/internal/records"
)

// housekeeping runs the periodic reconciliation pass, decoupled from the
// conveyor poll loop: moderation status sync, stuck-job recovery, feed
// re-export, and log retention.
func (d *Daemon) housekeeping(ctx context.Context) {
	defer close(d.houseDone)
	interval := d.cfg.Housekeeping.IntervalDuration()
	d.logger.Info("housekeeping started", logging.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("housekeeping stopped")
			return
		case <-ticker.C:
		}
		d.reconcileModeration(ctx)
		d.recoverStuckJobs(ctx)
		d.reexportFeed(ctx)
		logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:     d.cfg.Paths.LogDir,
			Pattern: "*.log",
			Exclude: []string{logging.FilePath(d.cfg)},
		})
	}
}

// reconcileModeration pulls import results for every published record
// whose moderation outcome is still open and stores the verdict.
func (d *Daemon) reconcileModeration(ctx context.Context) {
	pending, err := d.store.PendingModeration(ctx)
	if err != nil {
		d.logger.Error("load pending moderation records", logging.Error(err))
		return
	}
	for _, product := range pending {
		if ctx.Err() != nil {
			return
		}
		if product.Specs.UploadID == "" {
			continue
		}
		result, err := d.kaspi.GetImportResult(ctx, product.Specs.UploadID)
		if err != nil {
			d.logger.Warn("import result unavailable",
				logging.Int64("record_id", product.ID),
				logging.String("upload_id", product.Specs.UploadID),
				logging.Error(err))
			continue
		}

		verdict := moderationVerdict(result.Status, result.Errors[product.Specs.SKU])
		if verdict == "" || verdict == product.Specs.ModerationStatus {
			continue
		}
		product.Specs.ModerationStatus = verdict
		if message, ok := result.Errors[product.Specs.SKU]; ok {
			product.LogEvent("moderation rejected: " + message)
		} else {
			product.LogEvent("moderation " + verdict)
		}
		if err := d.store.Update(ctx, product); err != nil {
			if errors.Is(err, records.ErrVersionConflict) {
				continue
			}
			d.logger.Error("persist moderation status",
				logging.Int64("record_id", product.ID), logging.Error(err))
		}
	}
}

// moderationVerdict maps an import pipeline status and per-SKU error to a
// stored moderation outcome. Open statuses map to empty so the record is
// revisited next pass.
func moderationVerdict(status, skuError string) string {
	if skuError != "" {
		return "rejected"
	}
	switch status {
	case "finished", "completed", "success":
		return "approved"
	case "failed", "error":
		return "rejected"
	default:
		return ""
	}
}

func (d *Daemon) recoverStuckJobs(ctx context.Context) {
	reset, err := d.store.ResetStuckJobs(ctx)
	if err != nil {
		d.logger.Error("reset stuck jobs", logging.Error(err))
		return
	}
	if reset > 0 {
		d.logger.Info("stuck jobs re-queued", logging.Int64("count", reset))
	}
}

// reexportFeed rewrites the feed artifacts so downstream consumers see
// moderation outcomes and stock changes even between publish events.
func (d *Daemon) reexportFeed(ctx context.Context) {
	published, err := d.store.Published(ctx)
	if err != nil {
		d.logger.Error("load published records for feed", logging.Error(err))
		return
	}
	if len(published) == 0 {
		return
	}
	if err := d.feed.Regenerate(published); err != nil {
		d.logger.Error("regenerate feed", logging.Error(err))
	}
}
