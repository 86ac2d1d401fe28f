// Package extract turns one activated listing into a Business record, walking
// ordered selector fallbacks for every field.
package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mapscrap/internal/browser"
	"github.com/sells-group/mapscrap/internal/locator"
	"github.com/sells-group/mapscrap/internal/model"
)

// Pane is the part of the automation surface the extractor reads from.
type Pane interface {
	Activate(ctx context.Context, h browser.ListingHandle) error
	Text(ctx context.Context, selector string) (string, error)
	Attribute(ctx context.Context, selector, attr string) (string, error)
	Location(ctx context.Context) (string, error)
}

// Options tunes the extractor.
type Options struct {
	// Settle is the fixed wait for the detail pane after activation.
	Settle time.Duration
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Extractor reads detail panes into Business records.
type Extractor struct {
	pane   Pane
	detail locator.Detail
	opts   Options
}

// New creates an Extractor reading pane with the detail selectors of table.
func New(pane Pane, table *locator.Table, opts Options) *Extractor {
	if opts.Settle <= 0 {
		opts.Settle = 2200 * time.Millisecond
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Extractor{pane: pane, detail: table.Detail, opts: opts}
}

// Extract activates h and reads every field of its detail pane. Field misses
// leave the field absent and never fail the record. An error is returned only
// when the listing cannot be activated, the context ends, or the surface is
// lost; the caller skips the listing in the first two cases.
func (e *Extractor) Extract(ctx context.Context, h browser.ListingHandle, query string) (model.Business, error) {
	var b model.Business

	if err := e.pane.Activate(ctx, h); err != nil {
		return b, eris.Wrapf(err, "extract: activate %s", h)
	}
	if err := e.opts.Sleep(ctx, e.opts.Settle); err != nil {
		return b, eris.Wrap(err, "extract: wait for detail pane")
	}

	r := &fieldReader{ctx: ctx, pane: e.pane, log: zap.L().With(zap.String("component", "extract"), zap.Int("listing", h.Index()))}

	b.Name = r.first("name", e.detail.Name)
	b.Address = r.first("address", e.detail.Address)
	b.Domain = r.first("domain", e.detail.Domain)
	b.Website = DomainToWebsite(b.Domain)
	b.Phone = r.first("phone", e.detail.Phone)

	if raw := r.first("reviews_count", e.detail.ReviewsCount); raw != "" {
		if n, ok := ParseReviewCount(raw); ok {
			b.ReviewsCount = model.IntPtr(n)
		} else {
			r.log.Debug("unparsable review count", zap.String("raw", raw))
		}
	}

	if raw := r.first("reviews_average", e.detail.ReviewsAverage); raw != "" {
		if v, ok := ParseRating(raw); ok {
			b.ReviewsAverage = model.FloatPtr(v)
		} else {
			r.log.Debug("unparsable review average", zap.String("raw", raw))
		}
	}

	if loc, err := e.pane.Location(ctx); err != nil {
		r.fail("location", err)
	} else if lat, lon, ok := ParseCoordinates(loc); ok {
		b.Latitude = model.FloatPtr(lat)
		b.Longitude = model.FloatPtr(lon)
	}

	b.Category, b.Location = SplitQuery(query)

	if r.lost != nil {
		return b, r.lost
	}
	if err := ctx.Err(); err != nil {
		return model.Business{}, eris.Wrap(err, "extract: read detail pane")
	}
	return b, nil
}

// fieldReader isolates failures to the field being read.
type fieldReader struct {
	ctx  context.Context
	pane Pane
	log  *zap.Logger
	lost error
}

// first returns the first non-empty value among candidates.
func (r *fieldReader) first(field string, candidates []locator.Selector) string {
	for _, sel := range candidates {
		if r.lost != nil || r.ctx.Err() != nil {
			return ""
		}
		var (
			val string
			err error
		)
		if sel.Attr != "" {
			val, err = r.pane.Attribute(r.ctx, sel.Query, sel.Attr)
		} else {
			val, err = r.pane.Text(r.ctx, sel.Query)
		}
		if err != nil {
			if !eris.Is(err, browser.ErrNotFound) {
				r.fail(field, err)
			}
			continue
		}
		if v := cleanText(val); v != "" {
			return v
		}
	}
	return ""
}

func (r *fieldReader) fail(field string, err error) {
	if eris.Is(err, browser.ErrSurfaceLost) {
		r.lost = eris.Wrapf(err, "extract: read %s", field)
		return
	}
	r.log.Debug("field read failed", zap.String("field", field), zap.Error(err))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
