// Package pipeline implements the TVL aggregation pipeline: event-log
// discovery of capability objects, object resolution, field extraction, an
// adaptive batch fetch of per-position financials, a sequential cleanup pass
// over the remainder, and final aggregation into a TVLReport.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lumenlend/tvlscan/internal/config"
	"github.com/lumenlend/tvlscan/internal/model"
	"github.com/lumenlend/tvlscan/internal/observability"
	"github.com/lumenlend/tvlscan/internal/progress"
	"github.com/lumenlend/tvlscan/pkg/lendmarket"
	"github.com/lumenlend/tvlscan/pkg/suirpc"
)

// Runner executes one aggregation run. Construct a fresh Runner per run:
// all controller state and accumulators live on the run, so concurrent
// invocations are simply independent pipelines.
type Runner struct {
	cfg     *config.Config
	rpc     suirpc.Client
	market  lendmarket.Client
	stream  *progress.Stream
	metrics *observability.Metrics
	runID   string
	log     *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithStream attaches an externally owned progress stream (e.g. one the UI
// already subscribes to). Default: a fresh stream per run.
func WithStream(s *progress.Stream) Option {
	return func(r *Runner) {
		r.stream = s
	}
}

// WithMetrics attaches Prometheus metrics. Default: none.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// withSleep overrides inter-batch/inter-record pacing. Test hook.
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = fn
	}
}

// New creates a Runner bound to the given services.
func New(cfg *config.Config, rpc suirpc.Client, market lendmarket.Client, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		rpc:    rpc,
		market: market,
		runID:  uuid.NewString(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.stream == nil {
		r.stream = progress.NewStream()
	}
	r.log = zap.L().With(zap.String("run_id", r.runID))
	return r
}

// Stream returns the run's progress stream.
func (r *Runner) Stream() *progress.Stream {
	return r.stream
}

// RunID returns the unique identifier of this run.
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes the full pipeline and returns the final report. Stages run
// strictly in sequence; each stage parallelizes internally. Per-item
// failures are absorbed into the report's accounting; only failures that
// prevent any progress (market initialization, discovery failing outright)
// return an error, and then no report is produced.
func (r *Runner) Run(ctx context.Context) (*model.TVLReport, error) {
	start := time.Now()
	r.log.Info("aggregation run starting",
		zap.String("event_type", r.cfg.Discovery.EventType),
		zap.String("market_id", r.cfg.Market.MarketID),
	)
	r.stream.Publish("run %s: starting TVL aggregation", r.runID)

	report, err := r.run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		r.metrics.RecordRun("failed", elapsed.Seconds(), 0)
		r.log.Error("aggregation run failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		r.stream.Publish("run %s: failed: %v", r.runID, err)
		return nil, err
	}

	r.metrics.RecordRun("complete", elapsed.Seconds(), report.TotalTVL)
	r.log.Info("aggregation run complete",
		zap.Duration("elapsed", elapsed),
		zap.Int("positions", report.PositionCount),
		zap.Float64("total_tvl", report.TotalTVL),
	)
	return report, nil
}

func (r *Runner) run(ctx context.Context) (*model.TVLReport, error) {
	// Market initialization failure leaves the pipeline unable to fetch a
	// single position: terminal.
	if err := r.market.Initialize(ctx, r.cfg.Market.MarketID, r.cfg.Market.MarketType); err != nil {
		return nil, eris.Wrap(err, "pipeline: initialize market")
	}

	candidates, err := r.discoverCandidates(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: discover candidates")
	}

	if len(candidates) == 0 {
		r.stream.Publish("discovery: no capability events found, nothing to aggregate")
		return buildReport(r.runID, 0, 0, 0, &accumulator{}), nil
	}

	objects, _ := r.resolveObjects(ctx, candidates)
	records := r.extractRecords(objects)

	acc := &accumulator{}
	r.runMainPass(ctx, records, acc)

	missing := missingRecords(records, acc)
	mainFailures := len(missing)

	recovered := 0
	if mainFailures > 0 {
		recovered = r.runCleanupPass(ctx, missing, acc)
	}
	finalFailures := mainFailures - recovered

	report := buildReport(r.runID, len(records), mainFailures, finalFailures, acc)
	r.publishBreakdown(report, mainFailures, recovered)
	return report, nil
}

// sleepCtx pauses for d or until ctx is torn down.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
