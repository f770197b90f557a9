package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lumenlend/tvlscan/internal/model"
	"github.com/lumenlend/tvlscan/pkg/suirpc"
)

// resolveObjects fetches live object state for each candidate in fixed-size
// chunks, one multi-get call per chunk. Absent entries (object deleted or
// converted, wrong type) become absences, never chunk failures: a candidate
// can legitimately point at an object consumed since its creation event was
// logged. When the batch endpoint itself fails the chunk falls back to
// per-object fetches issued concurrently, bounding outstanding requests to
// one chunk's width either way.
func (r *Runner) resolveObjects(ctx context.Context, ids []model.CandidateID) ([]suirpc.ObjectData, int) {
	opts := suirpc.ObjectDataOptions{ShowContent: true, ShowOwner: true, ShowType: true}
	chunkSize := r.cfg.Resolve.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 10
	}

	var (
		resolved []suirpc.ObjectData
		absent   int
	)

	for start := 0; start < len(ids); start += chunkSize {
		end := minInt(start+chunkSize, len(ids))
		chunk := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			chunk = append(chunk, string(id))
		}

		objs, err := r.rpc.MultiGetObjects(ctx, chunk, opts)
		if err != nil {
			r.log.Debug("batch resolve failed, retrying per object",
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			objs = r.resolveIndividually(ctx, chunk, opts)
		}

		for i, obj := range objs {
			switch {
			case obj == nil:
				absent++
				r.log.Debug("candidate did not resolve",
					zap.String("object_id", chunk[i]),
				)
			case !r.isCapabilityType(obj):
				absent++
				r.log.Debug("candidate resolved to wrong type",
					zap.String("object_id", chunk[i]),
					zap.String("type", obj.Type),
				)
			default:
				resolved = append(resolved, *obj)
			}
		}

		if ctx.Err() != nil {
			break
		}
		r.stream.Publish("resolve: %d/%d candidates checked, %d live, %d absent",
			end, len(ids), len(resolved), absent)
	}

	r.metrics.RecordResolution(len(resolved), absent)
	if absent > 0 {
		r.stream.Publish("resolve: %d candidates no longer exist (superseded or converted)", absent)
	}
	return resolved, absent
}

// resolveIndividually fetches one chunk with a call per object, issued
// concurrently. Failed ids yield nil entries, positionally matching ids,
// mirroring the multi-get shape.
func (r *Runner) resolveIndividually(ctx context.Context, ids []string, opts suirpc.ObjectDataOptions) []*suirpc.ObjectData {
	out := make([]*suirpc.ObjectData, len(ids))
	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			obj, err := r.rpc.GetObject(gCtx, id, opts)
			if err != nil {
				return nil
			}
			out[i] = obj
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// isCapabilityType checks the resolved object's Move type against the
// configured capability suffix. An empty suffix disables the check.
func (r *Runner) isCapabilityType(obj *suirpc.ObjectData) bool {
	if r.cfg.Resolve.TypeSuffix == "" {
		return true
	}
	return strings.HasSuffix(obj.Type, r.cfg.Resolve.TypeSuffix)
}
