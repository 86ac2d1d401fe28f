// Package browser exposes the single automation surface that drives the map
// directory UI. The rest of the scraper consumes it through narrow interfaces.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// ErrSurfaceLost is returned when the underlying browser session is gone.
// It is the only failure the pipeline treats as fatal.
var ErrSurfaceLost = eris.New("browser: automation surface lost")

// ErrNotFound is returned when a selector matches nothing.
var ErrNotFound = eris.New("browser: selector matched nothing")

// ListingHandle references one listing anchor inside the live feed. It is
// valid only for the session that produced it and must not be persisted.
type ListingHandle struct {
	session string
	index   int
}

// NewListingHandle creates a handle for the listing at index in session.
func NewListingHandle(session string, index int) ListingHandle {
	return ListingHandle{session: session, index: index}
}

// Index returns the feed position the handle refers to.
func (h ListingHandle) Index() int { return h.index }

// Session returns the id of the session that issued the handle.
func (h ListingHandle) Session() string { return h.session }

func (h ListingHandle) String() string {
	return fmt.Sprintf("listing[%d]@%s", h.index, h.session)
}

// Surface is the full set of capabilities the scraper needs from a browser.
// Implementations are not safe for concurrent use.
type Surface interface {
	// Open loads the directory start page and dismisses any consent dialog.
	Open(ctx context.Context) error
	// Search submits query text in the search box.
	Search(ctx context.Context, query string) error
	// WaitFeed waits up to timeout for the result feed container. It returns
	// false with a nil error when the feed never appears.
	WaitFeed(ctx context.Context, timeout time.Duration) (bool, error)
	// Reveal scrolls the feed to make more listings materialize.
	Reveal(ctx context.Context) error
	// CountListings counts the listing anchors currently in the DOM.
	CountListings(ctx context.Context) (int, error)
	// Listings returns handles for the first n listing anchors.
	Listings(ctx context.Context, n int) ([]ListingHandle, error)
	// Activate opens the detail pane of a listing.
	Activate(ctx context.Context, h ListingHandle) error
	// Text returns the trimmed inner text of the first match of selector.
	Text(ctx context.Context, selector string) (string, error)
	// Attribute returns attr of the first match of selector.
	Attribute(ctx context.Context, selector, attr string) (string, error)
	// Location returns the current navigational location string.
	Location(ctx context.Context) (string, error)
	// Close ends the session.
	Close() error
}
