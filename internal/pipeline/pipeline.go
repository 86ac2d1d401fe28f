// Package pipeline sequences discovery, detail extraction, deduplication and
// contact enrichment into one run.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mapscrap/internal/browser"
	"github.com/sells-group/mapscrap/internal/dedup"
	"github.com/sells-group/mapscrap/internal/discovery"
	"github.com/sells-group/mapscrap/internal/model"
)

// DefaultWorkers is the enrichment pool size when none is given.
const DefaultWorkers = 10

// Discoverer produces listing handles for a query.
type Discoverer interface {
	Run(ctx context.Context, query string, target int) (*discovery.Result, error)
}

// DetailExtractor turns one listing handle into a business record.
type DetailExtractor interface {
	Extract(ctx context.Context, h browser.ListingHandle, query string) (model.Business, error)
}

// ContactEnricher mines contact channels from one website. It must not fail.
type ContactEnricher interface {
	Enrich(ctx context.Context, website string) model.ContactResult
}

// Request describes one run.
type Request struct {
	Query   string
	Target  int
	Workers int
}

// Result is the ordered, deduplicated, enriched record set of a run.
type Result struct {
	Businesses []model.Business
	// Partial is set when the run was interrupted or aborted before finishing.
	Partial  bool
	Stats    model.RunStats
	Duration time.Duration
}

// Pipeline runs discovery and enrichment against one automation surface.
// Run must not be called concurrently on the same Pipeline.
type Pipeline struct {
	discover Discoverer
	extract  DetailExtractor
	enrich   ContactEnricher
}

// New creates a Pipeline from its three engines. d and x may be nil for a
// Pipeline used only through EnrichOnly.
func New(d Discoverer, x DetailExtractor, e ContactEnricher) *Pipeline {
	return &Pipeline{discover: d, extract: x, enrich: e}
}

// Run discovers up to req.Target listings, extracts and deduplicates them, and
// enriches every accepted business that has a website. An interrupted run
// returns what it has with Partial set and a nil error. Losing the automation
// surface is the only error; records accepted before that are still returned.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, eris.New("pipeline: query is required")
	}
	if req.Target <= 0 {
		return nil, eris.Errorf("pipeline: target must be positive, got %d", req.Target)
	}
	if req.Workers <= 0 {
		req.Workers = DefaultWorkers
	}

	log := zap.L().With(zap.String("component", "pipeline"), zap.String("query", req.Query))
	log.Info("pipeline: starting run", zap.Int("target", req.Target), zap.Int("workers", req.Workers))

	res := &Result{}

	disc, err := p.discover.Run(ctx, req.Query, req.Target)
	if err != nil {
		res.Partial = true
		res.Duration = time.Since(start)
		return res, eris.Wrap(err, "pipeline: discovery")
	}
	res.Stats.Discovered = len(disc.Handles)
	res.Partial = disc.Interrupted

	store := dedup.New()
	fatal := p.extractAll(ctx, disc.Handles, req.Query, store, res)
	res.Stats.Duplicates = store.Rejected()
	res.Stats.Accepted = store.Len()

	enriched, interrupted := p.enrichAll(ctx, store.Businesses(), req.Workers, &res.Stats)
	res.Businesses = enriched
	res.Partial = res.Partial || interrupted || fatal != nil
	res.Duration = time.Since(start)

	log.Info("pipeline: run finished",
		zap.Int("accepted", res.Stats.Accepted),
		zap.Int("emails", res.Stats.Emails),
		zap.Bool("partial", res.Partial),
		zap.Duration("duration", res.Duration),
	)

	if fatal != nil {
		return res, fatal
	}
	return res, nil
}

// extractAll walks handles in feed order. It stops between listings when ctx
// ends and returns an error only when the surface is lost.
func (p *Pipeline) extractAll(ctx context.Context, handles []browser.ListingHandle, query string, store *dedup.Store, res *Result) error {
	log := zap.L().With(zap.String("component", "pipeline"))

	for _, h := range handles {
		if ctx.Err() != nil {
			log.Info("pipeline: interrupted during extraction", zap.Int("extracted", res.Stats.Extracted))
			res.Partial = true
			return nil
		}

		b, err := p.extract.Extract(ctx, h, query)
		if err != nil {
			if eris.Is(err, browser.ErrSurfaceLost) {
				log.Error("pipeline: automation surface lost", zap.Error(err))
				return eris.Wrap(err, "pipeline: extraction")
			}
			if ctx.Err() != nil {
				res.Partial = true
				return nil
			}
			log.Warn("pipeline: skipping listing", zap.Stringer("listing", h), zap.Error(err))
			res.Stats.Skipped++
			continue
		}

		res.Stats.Extracted++
		if !store.Add(b) {
			log.Debug("pipeline: duplicate listing", zap.String("name", b.Name))
		}
	}
	return nil
}
