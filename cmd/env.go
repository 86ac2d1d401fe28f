package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/mapscrap/internal/browser"
	"github.com/sells-group/mapscrap/internal/contact"
	"github.com/sells-group/mapscrap/internal/discovery"
	"github.com/sells-group/mapscrap/internal/extract"
	"github.com/sells-group/mapscrap/internal/locator"
	"github.com/sells-group/mapscrap/internal/pipeline"
	"github.com/sells-group/mapscrap/internal/scrape"
	"github.com/sells-group/mapscrap/internal/store"
)

// initStore opens the configured run store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// newEnricher builds the contact enricher over a rate-limited HTTP fetcher.
func newEnricher(table *locator.Table) (*contact.Enricher, error) {
	var limiter *rate.Limiter
	if cfg.Enrich.RateLimit > 0 {
		burst := max(1, int(cfg.Enrich.RateLimit))
		limiter = rate.NewLimiter(rate.Limit(cfg.Enrich.RateLimit), burst)
	}

	fetcher := scrape.NewHTTPFetcher(scrape.Options{
		Timeout:      cfg.Enrich.FetchTimeout(),
		MaxBodyBytes: cfg.Enrich.MaxBodyBytes(),
		Limiter:      limiter,
	})

	e, err := contact.New(fetcher, table, contact.Options{Retries: cfg.Enrich.Retries})
	if err != nil {
		return nil, eris.Wrap(err, "init enricher")
	}
	return e, nil
}

// scrapeEnv holds the browser session and the pipeline built on it.
type scrapeEnv struct {
	Pipeline *pipeline.Pipeline
	surface  browser.Surface
}

// Close ends the browser session.
func (se *scrapeEnv) Close() {
	if se.surface != nil {
		if err := se.surface.Close(); err != nil {
			zap.L().Warn("close browser", zap.Error(err))
		}
	}
}

// initScrape starts Chrome, opens the directory and wires the three engines
// into a Pipeline. Callers should defer env.Close().
func initScrape(ctx context.Context, headless bool) (*scrapeEnv, error) {
	table, err := locator.Load(cfg.Locator.File)
	if err != nil {
		return nil, err
	}

	enricher, err := newEnricher(table)
	if err != nil {
		return nil, err
	}

	chrome, err := browser.NewChrome(browser.Options{
		Headless:      headless,
		ExecPath:      cfg.Browser.ExecPath,
		Locale:        cfg.Browser.Locale,
		StartURL:      cfg.Browser.StartURL,
		ActionTimeout: cfg.Browser.ActionTimeout(),
	}, table)
	if err != nil {
		return nil, err
	}
	env := &scrapeEnv{surface: chrome}

	if err := chrome.Open(ctx); err != nil {
		env.Close()
		return nil, err
	}

	loop := discovery.NewLoop(chrome, discovery.Options{
		Settle:          cfg.Discovery.Settle(),
		FeedTimeout:     cfg.Discovery.FeedTimeout(),
		StagnationLimit: cfg.Discovery.StagnationLimit,
		MaxRounds:       cfg.Discovery.MaxRounds,
	})
	extractor := extract.New(chrome, table, extract.Options{Settle: cfg.Extract.Settle()})

	env.Pipeline = pipeline.New(loop, extractor, enricher)
	return env, nil
}
