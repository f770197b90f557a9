package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumenlend/tvlscan/internal/model"
	"github.com/lumenlend/tvlscan/internal/resilience"
)

// runCleanupPass retries every record the main pass gave up on, one at a
// time under a fixed conservative schedule: deeper retry budget, longer
// backoff, and a flat pause between records regardless of outcome. The
// assumption is that what survived the main pass's retries is being
// rate-limited rather than failing randomly, so the remedy is sustained low
// pressure, not another adaptive loop. Returns the count recovered.
func (r *Runner) runCleanupPass(ctx context.Context, failed []model.CapabilityRecord, acc *accumulator) int {
	retryCfg := resilience.RetryConfig{
		MaxAttempts: r.cfg.Cleanup.Attempts,
		Backoff:     resilience.LinearBackoff(r.cfg.Cleanup.BackoffStep()),
		ShouldRetry: func(error) bool { return true },
	}

	r.stream.Publish("cleanup: retrying %d failed positions sequentially", len(failed))

	recovered := 0
	for i, rec := range failed {
		summary, err := r.fetchPosition(ctx, rec, retryCfg)
		if err != nil {
			r.metrics.RecordFetch("cleanup", false)
			r.log.Warn("position unrecoverable after cleanup pass",
				zap.String("position_id", rec.PositionID),
				zap.Error(err),
			)
			r.stream.Publish("cleanup: position %s still failing, giving up", shortID(rec.PositionID))
		} else {
			recovered++
			acc.add(*summary)
			r.metrics.RecordFetch("cleanup", true)
			r.stream.Publish("cleanup: position %s recovered", shortID(rec.PositionID))
		}

		if i < len(failed)-1 {
			if err := r.sleep(ctx, r.cfg.Cleanup.RecordPause()); err != nil {
				return recovered
			}
		}
	}

	r.stream.Publish("cleanup: %d/%d recovered in cleanup", recovered, len(failed))
	return recovered
}

// missingRecords computes the records whose position never produced a
// summary in the main pass, keyed by position identifier.
func missingRecords(records []model.CapabilityRecord, acc *accumulator) []model.CapabilityRecord {
	have := make(map[string]struct{}, len(acc.summaries))
	for _, s := range acc.summaries {
		have[s.PositionID] = struct{}{}
	}

	var missing []model.CapabilityRecord
	for _, rec := range records {
		if _, ok := have[rec.PositionID]; !ok {
			missing = append(missing, rec)
		}
	}
	return missing
}
