package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mapscrap/internal/locator"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Options configures the Chrome surface.
type Options struct {
	Headless bool
	ExecPath string
	Locale   string
	StartURL string
	// ActionTimeout bounds every single browser action.
	ActionTimeout time.Duration
	// LookupTimeout bounds selector lookups in the detail pane.
	LookupTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Locale == "" {
		o.Locale = "en-GB"
	}
	if o.StartURL == "" {
		o.StartURL = "https://www.google.com/maps"
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 30 * time.Second
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = 2 * time.Second
	}
	return o
}

// Chrome drives a headless or visible Chrome instance through chromedp.
type Chrome struct {
	opts    Options
	table   *locator.Table
	session string

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewChrome starts a Chrome process and returns a Surface bound to it.
func NewChrome(opts Options, table *locator.Table) (*Chrome, error) {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("lang", opts.Locale),
		chromedp.UserAgent(defaultUserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a missing binary fails here.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, eris.Wrap(err, "browser: start chrome")
	}

	return &Chrome{
		opts:        opts,
		table:       table,
		session:     uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

// run executes actions bounded by timeout and by the caller's ctx.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if c.ctx.Err() != nil {
		return ErrSurfaceLost
	}
	callCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(callCtx, actions...)
	if err == nil {
		return nil
	}
	if c.ctx.Err() != nil {
		return eris.Wrap(ErrSurfaceLost, err.Error())
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) Open(ctx context.Context) error {
	if err := c.run(ctx, c.opts.ActionTimeout, chromedp.Navigate(c.opts.StartURL)); err != nil {
		return eris.Wrap(err, "browser: open start page")
	}
	c.dismissConsent(ctx)
	return nil
}

// dismissConsent clicks the first consent button that shows up. A missing
// dialog is normal.
func (c *Chrome) dismissConsent(ctx context.Context) {
	for _, sel := range c.table.Feed.ConsentButtons {
		err := c.run(ctx, 5*time.Second,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
		)
		if err == nil {
			zap.L().Debug("browser: consent dialog dismissed", zap.String("selector", sel))
			return
		}
	}
	zap.L().Debug("browser: no consent dialog found")
}

func (c *Chrome) Search(ctx context.Context, query string) error {
	sel := c.table.Feed.SearchBox
	err := c.run(ctx, c.opts.ActionTimeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SetValue(sel, "", chromedp.ByQuery),
		chromedp.SendKeys(sel, query, chromedp.ByQuery),
		chromedp.SendKeys(sel, kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return eris.Wrap(err, "browser: submit search")
	}
	return nil
}

func (c *Chrome) WaitFeed(ctx context.Context, timeout time.Duration) (bool, error) {
	err := c.run(ctx, timeout, chromedp.WaitReady(c.table.Feed.Container, chromedp.ByQuery))
	if err == nil {
		return true, nil
	}
	if eris.Is(err, ErrSurfaceLost) || ctx.Err() != nil {
		return false, err
	}
	return false, nil
}

func (c *Chrome) Reveal(ctx context.Context) error {
	script := fmt.Sprintf(`(function() {
		var panel = document.querySelector(%q);
		if (panel) {
			panel.scrollTop = panel.scrollHeight;
			return true;
		}
		window.scrollBy(0, 1500);
		return false;
	})()`, c.table.Feed.Container)

	var scrolled bool
	if err := c.run(ctx, c.opts.ActionTimeout, chromedp.Evaluate(script, &scrolled)); err != nil {
		return eris.Wrap(err, "browser: reveal")
	}
	if !scrolled {
		zap.L().Debug("browser: feed container missing, scrolled window instead")
	}
	return nil
}

func (c *Chrome) CountListings(ctx context.Context) (int, error) {
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, c.table.Feed.ListingAnchor)
	var n int
	if err := c.run(ctx, c.opts.ActionTimeout, chromedp.Evaluate(script, &n)); err != nil {
		return 0, eris.Wrap(err, "browser: count listings")
	}
	return n, nil
}

func (c *Chrome) Listings(ctx context.Context, n int) ([]ListingHandle, error) {
	count, err := c.CountListings(ctx)
	if err != nil {
		return nil, err
	}
	if n > count {
		n = count
	}
	handles := make([]ListingHandle, n)
	for i := range handles {
		handles[i] = NewListingHandle(c.session, i)
	}
	return handles, nil
}

func (c *Chrome) Activate(ctx context.Context, h ListingHandle) error {
	if h.session != c.session {
		return eris.Errorf("browser: handle %s belongs to another session", h)
	}
	script := fmt.Sprintf(`(function() {
		var els = document.querySelectorAll(%q);
		if (els.length <= %d) { return false; }
		els[%d].scrollIntoView({block: "center"});
		els[%d].click();
		return true;
	})()`, c.table.Feed.ListingAnchor, h.index, h.index, h.index)

	var clicked bool
	if err := c.run(ctx, c.opts.ActionTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return eris.Wrapf(err, "browser: activate %s", h)
	}
	if !clicked {
		return eris.Errorf("browser: %s no longer in feed", h)
	}
	return nil
}

// firstNode returns the first node matching selector without waiting for it
// to appear.
func (c *Chrome) firstNode(ctx context.Context, selector string) (*cdp.Node, error) {
	var nodes []*cdp.Node
	err := c.run(ctx, c.opts.LookupTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.BySearch, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: lookup %s", selector)
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return nodes[0], nil
}

func (c *Chrome) Text(ctx context.Context, selector string) (string, error) {
	node, err := c.firstNode(ctx, selector)
	if err != nil {
		return "", err
	}
	var text string
	err = c.run(ctx, c.opts.LookupTimeout,
		chromedp.Text([]cdp.NodeID{node.NodeID}, &text, chromedp.ByNodeID),
	)
	if err != nil {
		return "", eris.Wrapf(err, "browser: read text %s", selector)
	}
	return strings.TrimSpace(text), nil
}

func (c *Chrome) Attribute(ctx context.Context, selector, attr string) (string, error) {
	node, err := c.firstNode(ctx, selector)
	if err != nil {
		return "", err
	}
	val, ok := node.Attribute(attr)
	if !ok {
		return "", ErrNotFound
	}
	return strings.TrimSpace(val), nil
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, c.opts.ActionTimeout, chromedp.Location(&loc)); err != nil {
		return "", eris.Wrap(err, "browser: read location")
	}
	return loc, nil
}

func (c *Chrome) Close() error {
	c.cancel()
	c.allocCancel()
	return nil
}
