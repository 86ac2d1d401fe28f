package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mapscrap/internal/model"
)

// enrichAll enriches every business with a website using at most workers
// concurrent tasks. Each task writes only its own slot; results are merged
// back by index so output order equals input order. Contact channels already
// on a record survive unless the task found a replacement. interrupted
// reports that ctx ended before every task was submitted.
func (p *Pipeline) enrichAll(ctx context.Context, businesses []model.Business, workers int, stats *model.RunStats) (out []model.Business, interrupted bool) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	slots := make([]model.ContactResult, len(businesses))
	ran := make([]bool, len(businesses))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, b := range businesses {
		if !b.HasWebsite() {
			continue
		}
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		g.Go(func() error {
			slots[i] = p.enrich.Enrich(ctx, b.Website)
			ran[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out = make([]model.Business, len(businesses))
	for i, b := range businesses {
		out[i] = b
		if ran[i] {
			out[i] = b.WithContact(b.Contact.Merge(slots[i]))
			stats.Enriched++
		}
		if out[i].Contact.HasEmail() {
			stats.Emails++
		}
	}

	if interrupted {
		zap.L().Info("pipeline: interrupted during enrichment",
			zap.String("component", "pipeline"),
			zap.Int("enriched", stats.Enriched),
			zap.Int("total", len(businesses)),
		)
	}
	return out, interrupted
}

// EnrichOnly enriches an already extracted record set, such as a previously
// exported file, without touching the automation surface.
func (p *Pipeline) EnrichOnly(ctx context.Context, businesses []model.Business, workers int) *Result {
	res := &Result{}
	res.Stats.Accepted = len(businesses)
	res.Businesses, res.Partial = p.enrichAll(ctx, businesses, workers, &res.Stats)
	return res
}
