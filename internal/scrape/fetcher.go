// Package scrape fetches web pages over plain HTTP and parses them into
// queryable documents for contact mining.
package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/mapscrap/internal/resilience"
)

// UserAgent is sent with every request.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

var (
	// ErrBlocked is returned when anti-bot protection answered instead of the site.
	ErrBlocked = eris.New("scrape: blocked")
	// ErrStatus is returned for non-transient HTTP error statuses.
	ErrStatus = eris.New("scrape: bad status")
)

// Fetcher retrieves and parses a single page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Options configures an HTTPFetcher.
type Options struct {
	// Timeout bounds each request including the body read. Default 12s.
	Timeout time.Duration
	// MaxBodyBytes caps how much of a response is read. Default 2 MiB.
	MaxBodyBytes int64
	// Limiter, when set, is waited on before every request.
	Limiter *rate.Limiter
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// HTTPFetcher fetches pages with net/http and parses them with goquery.
// It is safe for concurrent use.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	maxBody int64
	limiter *rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 12 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 << 20
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		}
	}
	return &HTTPFetcher{
		client:  client,
		timeout: opts.Timeout,
		maxBody: opts.MaxBodyBytes,
		limiter: opts.Limiter,
	}
}

// Fetch downloads targetURL and parses it. Statuses 408, 429 and 5xx, as well
// as network failures, come back as transient errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "scrape: rate limit wait")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en,es;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: fetch %s", targetURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: read body %s", targetURL)
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Wrapf(ErrBlocked, "scrape: %s (%s)", targetURL, kind)
	}

	if resp.StatusCode >= 400 {
		err := eris.Wrapf(ErrStatus, "scrape: %s status %d", targetURL, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	utf8Body, err := decodeCharset(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: decode %s", targetURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: parse %s", targetURL)
	}

	final := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return newPage(final, resp.StatusCode, doc), nil
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([A-Za-z0-9_\-:.]+)`)

// decodeCharset converts body to UTF-8 using the Content-Type charset or, when
// absent, a <meta charset> declaration near the top of the document.
func decodeCharset(body []byte, contentType string) ([]byte, error) {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		head := body
		if len(head) > 2048 {
			head = head[:2048]
		}
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			label = string(m[1])
		}
	}

	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "utf-8" || label == "utf8" {
		return body, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		// Unknown labels fall back to the raw bytes.
		return body, nil
	}
	return enc.NewDecoder().Bytes(body)
}
