package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lumenlend/tvlscan/internal/model"
	"github.com/lumenlend/tvlscan/internal/resilience"
	"github.com/lumenlend/tvlscan/pkg/lendmarket"
)

// accumulator carries the running totals and result list across both fetch
// passes. One pipeline run owns exactly one accumulator.
type accumulator struct {
	deposits  float64
	borrows   float64
	summaries []model.PositionSummary
}

func (a *accumulator) add(s model.PositionSummary) {
	a.deposits += s.DepositedUSD
	a.borrows += s.BorrowedUSD
	a.summaries = append(a.summaries, s)
}

// runMainPass drives the adaptive batch fetch over all extracted records.
// Batch width and inter-batch pacing follow the controller; every record
// gets the main-pass retry budget before being declared failed for this
// pass. Failures are not tracked here — the cleanup pass derives its work
// from the set difference between records and accumulated summaries.
func (r *Runner) runMainPass(ctx context.Context, records []model.CapabilityRecord, acc *accumulator) {
	ctrl := newBatchController(r.cfg.Tuning)
	retryCfg := resilience.RetryConfig{
		MaxAttempts: r.cfg.Tuning.FetchAttempts,
		Backoff:     resilience.LinearBackoff(r.cfg.Tuning.FetchBackoffStep()),
		// The main pass retries every failure within its budget; the
		// transient/permanent distinction is settled by the cleanup pass.
		ShouldRetry: func(error) bool { return true },
	}

	batchNum := 0

	for idx := 0; idx < len(records); {
		end := minInt(idx+ctrl.batchSize, len(records))
		batch := records[idx:end]
		idx = end
		batchNum++

		results := make([]*model.PositionSummary, len(batch))
		g, gCtx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		for i, rec := range batch {
			i, rec := i, rec
			g.Go(func() error {
				summary, err := r.fetchPosition(gCtx, rec, retryCfg)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					r.log.Warn("position fetch failed in main pass",
						zap.String("position_id", rec.PositionID),
						zap.Error(err),
					)
					return nil
				}
				results[i] = summary
				return nil
			})
		}
		_ = g.Wait()

		successes := 0
		for _, s := range results {
			if s != nil {
				successes++
				acc.add(*s)
				r.metrics.RecordFetch("main", true)
			} else {
				r.metrics.RecordFetch("main", false)
			}
		}

		outcome := ctrl.observe(successes, len(batch))
		r.metrics.RecordController(ctrl.batchSize, ctrl.delayMS, ctrl.recoveryMode, string(outcome))

		r.stream.Publish("fetch: batch %d done, %d/%d ok (%s; next size %d, delay %dms, recovery %v)",
			batchNum, successes, len(batch), outcome, ctrl.batchSize, ctrl.delayMS, ctrl.recoveryMode)

		if idx < len(records) {
			if err := r.sleep(ctx, ctrl.delay()); err != nil {
				// Torn-down context: stop here, keep what we have.
				return
			}
		}
	}
}

// fetchPosition retrieves one position's snapshot with the given retry
// schedule and converts it to display units.
func (r *Runner) fetchPosition(ctx context.Context, rec model.CapabilityRecord, retryCfg resilience.RetryConfig) (*model.PositionSummary, error) {
	cfg := retryCfg
	cfg.OnRetry = func(attempt int, err error) {
		r.stream.Publish("fetch: position %s attempt %d failed, retrying", shortID(rec.PositionID), attempt)
	}

	ob, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*lendmarket.Obligation, error) {
		return r.market.GetObligation(ctx, rec.PositionID)
	})
	if err != nil {
		return nil, err
	}

	deposited := ob.DepositedValue.Float()
	borrowed := ob.BorrowedValue.Float()
	return &model.PositionSummary{
		PositionID:     rec.PositionID,
		DepositedUSD:   deposited,
		BorrowedUSD:    borrowed,
		NetUSD:         deposited - borrowed,
		Classification: rec.Classification,
		Owner:          rec.Owner,
		ObjectID:       rec.ObjectID,
	}, nil
}

// shortID abbreviates an object address for log lines.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:8] + "…" + id[len(id)-4:]
}
