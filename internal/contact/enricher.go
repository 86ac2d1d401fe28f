// Package contact mines a business website for an email address and social
// profile links.
package contact

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/mapscrap/internal/locator"
	"github.com/sells-group/mapscrap/internal/model"
	"github.com/sells-group/mapscrap/internal/resilience"
	"github.com/sells-group/mapscrap/internal/scrape"
)

// Options configures an Enricher.
type Options struct {
	// Retries is the number of extra attempts for a transient fetch failure.
	Retries int
	// InstagramBase is the profile URL prefix used for the bonus fetch.
	// Defaults to https://www.instagram.com/.
	InstagramBase string
}

// Enricher mines one website at a time. It holds no per-call state and is
// safe for concurrent use when its Fetcher is.
type Enricher struct {
	fetcher   scrape.Fetcher
	paths     []string
	matchers  []matcher
	retries   int
	instaBase string
}

// New creates an Enricher using the email paths and platform patterns of table.
func New(fetcher scrape.Fetcher, table *locator.Table, opts Options) (*Enricher, error) {
	matchers, err := compileMatchers(table.Platforms)
	if err != nil {
		return nil, err
	}
	if opts.InstagramBase == "" {
		opts.InstagramBase = "https://www.instagram.com/"
	}
	if !strings.HasSuffix(opts.InstagramBase, "/") {
		opts.InstagramBase += "/"
	}
	return &Enricher{
		fetcher:   fetcher,
		paths:     append([]string(nil), table.EmailPaths...),
		matchers:  matchers,
		retries:   opts.Retries,
		instaBase: opts.InstagramBase,
	}, nil
}

// Enrich returns whatever contact channels can be mined from website. It never
// fails: every fetch or parse problem is logged and leaves fields empty.
func (e *Enricher) Enrich(ctx context.Context, website string) model.ContactResult {
	var result model.ContactResult

	base := NormalizeURL(website)
	if base == "" {
		return result
	}
	log := zap.L().With(zap.String("component", "contact"), zap.String("website", base))

	var (
		root      *scrape.Page
		rootTried bool
	)
	for _, p := range e.paths {
		if ctx.Err() != nil {
			break
		}
		target := joinPath(base, p)
		isRoot := target == base
		rootTried = rootTried || isRoot
		page, err := e.fetch(ctx, target)
		if err != nil {
			log.Debug("path fetch failed", zap.String("url", target), zap.Error(err))
			continue
		}
		if isRoot {
			root = page
		}
		if email := PageEmail(page); email != "" {
			result.Email = email
			result.EmailSource = target
			break
		}
	}

	if !rootTried && ctx.Err() == nil {
		page, err := e.fetch(ctx, base)
		if err != nil {
			log.Debug("root fetch failed", zap.Error(err))
		}
		root = page
	}
	if root != nil {
		scanSocials(&result, e.matchers, root.Links())
	}

	if result.InstagramUsername != "" && result.Email == "" && ctx.Err() == nil {
		profile := e.instaBase + result.InstagramUsername + "/"
		page, err := e.fetch(ctx, profile)
		if err != nil {
			log.Debug("instagram profile fetch failed", zap.String("url", profile), zap.Error(err))
		} else if email := TextEmail(page.Text()); email != "" {
			result.Email = email
			result.EmailSource = profile
		}
	}

	log.Debug("website enriched",
		zap.Bool("email", result.HasEmail()),
		zap.Int("socials", result.Socials()),
	)
	return result
}

func (e *Enricher) fetch(ctx context.Context, target string) (*scrape.Page, error) {
	cfg := resilience.FetchRetry(e.retries)
	cfg.OnRetry = resilience.RetryLogger("contact", target)
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*scrape.Page, error) {
		return e.fetcher.Fetch(ctx, target)
	})
}

// NormalizeURL prepends https:// when the scheme is missing and strips
// trailing slashes. It returns "" for input that is not a usable http(s) URL.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.RawQuery = ""
	return strings.TrimRight(u.String(), "/")
}

func joinPath(base, p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return base
	}
	return base + "/" + p
}
