package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumenlend/tvlscan/internal/model"
	"github.com/lumenlend/tvlscan/pkg/suirpc"
)

// discoverCandidates pages the capability-created event log newest-first and
// extracts candidate object IDs from each event's payload. Pagination stops
// when the node reports no further pages or the configured page ceiling is
// reached; the ceiling is a soft cap against an unbounded history, logged
// rather than errored. Candidates are not guaranteed unique; dedup (when
// enabled) happens after the full walk so the walk itself stays a faithful
// view of the log.
func (r *Runner) discoverCandidates(ctx context.Context) ([]model.CandidateID, error) {
	filter := suirpc.EventFilter{MoveEventType: r.cfg.Discovery.EventType}

	var (
		candidates []model.CandidateID
		cursor     *suirpc.EventCursor
		pages      int
		skipped    int
	)

	for {
		page, err := r.rpc.QueryEvents(ctx, filter, cursor, r.cfg.Discovery.PageSize, true)
		if err != nil {
			// Progress made so far is kept: a mid-walk failure degrades to a
			// partial candidate set, only a first-page failure is terminal.
			if pages == 0 {
				return nil, err
			}
			r.log.Warn("event pagination aborted early",
				zap.Int("pages", pages),
				zap.Int("candidates", len(candidates)),
				zap.Error(err),
			)
			r.stream.Publish("discovery: page %d failed, continuing with %d candidates", pages+1, len(candidates))
			break
		}
		pages++

		found := 0
		for _, ev := range page.Data {
			raw, ok := ev.ParsedJSON[r.cfg.Discovery.PayloadField].(string)
			if !ok {
				skipped++
				r.log.Debug("event payload missing capability id",
					zap.String("tx", ev.ID.TxDigest),
					zap.String("event_seq", ev.ID.EventSeq),
				)
				continue
			}
			id := model.NormalizeCandidateID(raw)
			if id == "" {
				skipped++
				continue
			}
			candidates = append(candidates, id)
			found++
		}

		r.metrics.RecordPage(found)
		r.stream.Publish("discovery: page %d, %d events, %d candidates total", pages, len(page.Data), len(candidates))

		if !page.HasNextPage {
			break
		}
		if r.cfg.Discovery.MaxPages > 0 && pages >= r.cfg.Discovery.MaxPages {
			r.log.Info("event pagination hit page ceiling",
				zap.Int("max_pages", r.cfg.Discovery.MaxPages),
				zap.Int("candidates", len(candidates)),
			)
			r.stream.Publish("discovery: stopping at page ceiling (%d pages)", pages)
			break
		}
		cursor = page.NextCursor
		if cursor == nil {
			// hasNextPage without a cursor would loop forever
			r.log.Warn("node reported next page without cursor, stopping")
			break
		}
	}

	if skipped > 0 {
		r.stream.Publish("discovery: skipped %d malformed events", skipped)
	}

	if r.cfg.Discovery.Dedupe {
		candidates = dedupeCandidates(candidates)
	}

	return candidates, nil
}

// dedupeCandidates collapses duplicate IDs preserving first-seen order. The
// event log can replay creation events for the same object across
// re-indexing, and a duplicate would double-count its position.
func dedupeCandidates(ids []model.CandidateID) []model.CandidateID {
	seen := make(map[model.CandidateID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
