package discovery

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mapscrap/internal/browser"
)

// Feed is the part of the automation surface the discovery loop drives.
type Feed interface {
	Search(ctx context.Context, query string) error
	WaitFeed(ctx context.Context, timeout time.Duration) (bool, error)
	Reveal(ctx context.Context) error
	CountListings(ctx context.Context) (int, error)
	Listings(ctx context.Context, n int) ([]browser.ListingHandle, error)
}

// State is a discovery loop state.
type State int

const (
	StateSearching State = iota
	StateRevealing
	StateDone
	StateNoResults
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateRevealing:
		return "revealing"
	case StateDone:
		return "done"
	case StateNoResults:
		return "no_results"
	default:
		return "unknown"
	}
}

// Options tunes the discovery loop.
type Options struct {
	// Settle is the fixed wait after searching and after each reveal.
	Settle time.Duration
	// FeedTimeout bounds the wait for the feed container to appear.
	FeedTimeout time.Duration
	// StagnationLimit is the number of consecutive unchanged polls after which
	// the feed is assumed exhausted.
	StagnationLimit int
	// MaxRounds caps reveal rounds for feeds that grow without reaching the
	// target.
	MaxRounds int
	// Sleep waits for d or until ctx is done. Defaults to a timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.Settle <= 0 {
		o.Settle = 1800 * time.Millisecond
	}
	if o.FeedTimeout <= 0 {
		o.FeedTimeout = 8 * time.Second
	}
	if o.StagnationLimit <= 0 {
		o.StagnationLimit = 3
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = 200
	}
	if o.Sleep == nil {
		o.Sleep = Sleep
	}
	return o
}

// Result is the outcome of one discovery session.
type Result struct {
	Handles []browser.ListingHandle
	// Final is StateDone or StateNoResults.
	Final State
	// Count is the number of anchors materialized when the loop stopped.
	Count  int
	Rounds int
	// Interrupted is set when ctx ended the loop early.
	Interrupted bool
}

// Loop reveals listings in a virtualized feed until a target count is reached
// or the feed stops growing. Termination is heuristic: a feed that stalls for
// StagnationLimit polls is assumed exhausted even if more items exist.
type Loop struct {
	feed Feed
	opts Options
}

// NewLoop creates a Loop over feed.
func NewLoop(feed Feed, opts Options) *Loop {
	return &Loop{feed: feed, opts: opts.withDefaults()}
}

// Run searches for query and returns handles for up to target listings. A
// missing feed yields an empty result, not an error. Only a lost surface is
// returned as an error.
func (l *Loop) Run(ctx context.Context, query string, target int) (*Result, error) {
	log := zap.L().With(zap.String("component", "discovery"), zap.String("query", query))

	if target <= 0 {
		return nil, eris.Errorf("discovery: target must be positive, got %d", target)
	}

	res := &Result{}
	state := StateSearching
	previous, stagnant := 0, 0

	for {
		switch state {
		case StateSearching:
			if err := l.feed.Search(ctx, query); err != nil {
				if eris.Is(err, browser.ErrSurfaceLost) {
					return nil, eris.Wrap(err, "discovery: search")
				}
				log.Warn("search submission failed", zap.Error(err))
				state = StateNoResults
				continue
			}
			if err := l.opts.Sleep(ctx, l.opts.Settle); err != nil {
				res.Interrupted = true
				state = StateNoResults
				continue
			}
			found, err := l.feed.WaitFeed(ctx, l.opts.FeedTimeout)
			if err != nil && eris.Is(err, browser.ErrSurfaceLost) {
				return nil, eris.Wrap(err, "discovery: wait for feed")
			}
			if !found {
				log.Info("no feed container found, zero results")
				state = StateNoResults
				continue
			}
			state = StateRevealing

		case StateRevealing:
			if ctx.Err() != nil {
				res.Interrupted = true
				state = StateDone
				continue
			}
			res.Rounds++

			if err := l.feed.Reveal(ctx); err != nil {
				if eris.Is(err, browser.ErrSurfaceLost) {
					return nil, eris.Wrap(err, "discovery: reveal")
				}
				log.Debug("reveal failed", zap.Error(err))
			}
			if err := l.opts.Sleep(ctx, l.opts.Settle); err != nil {
				res.Interrupted = true
				state = StateDone
				continue
			}

			count, err := l.feed.CountListings(ctx)
			if err != nil {
				if eris.Is(err, browser.ErrSurfaceLost) {
					return nil, eris.Wrap(err, "discovery: count listings")
				}
				log.Debug("count failed, treating poll as stagnant", zap.Error(err))
				count = previous
			}
			res.Count = count
			log.Info("listings loaded", zap.Int("count", count), zap.Int("round", res.Rounds))

			state, previous, stagnant = l.next(count, previous, stagnant, target)
			if state == StateRevealing && res.Rounds >= l.opts.MaxRounds {
				log.Warn("reveal round limit reached", zap.Int("rounds", res.Rounds))
				state = StateDone
			}

		case StateDone:
			n := min(res.Count, target)
			if n == 0 {
				res.Final = StateNoResults
				return res, nil
			}
			handles, err := l.feed.Listings(ctx, n)
			if err != nil {
				if eris.Is(err, browser.ErrSurfaceLost) {
					return nil, eris.Wrap(err, "discovery: materialize handles")
				}
				log.Warn("materializing handles failed", zap.Error(err))
			}
			res.Handles = handles
			res.Final = StateDone
			log.Info("discovery complete",
				zap.Int("handles", len(handles)),
				zap.Int("rounds", res.Rounds),
				zap.Bool("interrupted", res.Interrupted),
			)
			return res, nil

		case StateNoResults:
			res.Final = StateNoResults
			return res, nil
		}
	}
}

// next applies one revealing transition given the latest count. A count that
// did not grow, including one that shrank, is a stagnant poll.
func (l *Loop) next(count, previous, stagnant, target int) (State, int, int) {
	if count >= target {
		return StateDone, count, stagnant
	}
	if count <= previous {
		stagnant++
		if stagnant >= l.opts.StagnationLimit {
			return StateDone, count, stagnant
		}
		return StateRevealing, previous, stagnant
	}
	return StateRevealing, count, 0
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
