package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mapscrap/internal/browser"
)

// fakeFeed replays a scripted sequence of anchor counts.
type fakeFeed struct {
	counts    []int
	polls     int
	reveals   int
	noFeed    bool
	searchErr error
	revealErr error
	countErr  map[int]error
	queries   []string
}

func (f *fakeFeed) Search(_ context.Context, query string) error {
	f.queries = append(f.queries, query)
	return f.searchErr
}

func (f *fakeFeed) WaitFeed(_ context.Context, _ time.Duration) (bool, error) {
	return !f.noFeed, nil
}

func (f *fakeFeed) Reveal(_ context.Context) error {
	f.reveals++
	return f.revealErr
}

func (f *fakeFeed) CountListings(_ context.Context) (int, error) {
	i := f.polls
	f.polls++
	if err, ok := f.countErr[i]; ok {
		return 0, err
	}
	if i >= len(f.counts) {
		return f.counts[len(f.counts)-1], nil
	}
	return f.counts[i], nil
}

func (f *fakeFeed) Listings(_ context.Context, n int) ([]browser.ListingHandle, error) {
	out := make([]browser.ListingHandle, n)
	for i := range out {
		out[i] = browser.NewListingHandle("test", i)
	}
	return out, nil
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestLoop(f Feed) *Loop {
	return NewLoop(f, Options{Sleep: noSleep})
}

func TestLoop_StopsAfterThreeStagnantPolls(t *testing.T) {
	feed := &fakeFeed{counts: []int{5, 10, 10, 10, 10, 10, 10}}
	res, err := newTestLoop(feed).Run(context.Background(), "cafes in Barcelona", 20)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.Final)
	assert.Equal(t, 10, res.Count)
	assert.Len(t, res.Handles, 10)
	// 5, 10, then three unchanged polls.
	assert.Equal(t, 5, feed.polls)
	assert.Equal(t, 5, res.Rounds)
}

func TestLoop_StopsAtTarget(t *testing.T) {
	feed := &fakeFeed{counts: []int{7, 14, 21, 28}}
	res, err := newTestLoop(feed).Run(context.Background(), "bakeries", 20)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.Final)
	assert.Equal(t, 21, res.Count)
	assert.Len(t, res.Handles, 20, "handles capped at target")
	assert.Equal(t, 3, feed.polls)
}

func TestLoop_GrowthResetsStagnation(t *testing.T) {
	feed := &fakeFeed{counts: []int{5, 5, 5, 8, 8, 8, 8}}
	res, err := newTestLoop(feed).Run(context.Background(), "q", 50)
	require.NoError(t, err)

	assert.Equal(t, 8, res.Count)
	assert.Equal(t, 7, feed.polls)
}

func TestLoop_ShrinkingCountIsStagnant(t *testing.T) {
	feed := &fakeFeed{counts: []int{10, 9, 8, 7}}
	res, err := newTestLoop(feed).Run(context.Background(), "q", 50)
	require.NoError(t, err)

	assert.Equal(t, 4, feed.polls)
	assert.Equal(t, 7, res.Count)
	assert.Len(t, res.Handles, 7)
}

func TestLoop_NoFeedYieldsEmptyResult(t *testing.T) {
	feed := &fakeFeed{noFeed: true, counts: []int{0}}
	res, err := newTestLoop(feed).Run(context.Background(), "nothing here", 20)
	require.NoError(t, err)

	assert.Equal(t, StateNoResults, res.Final)
	assert.Empty(t, res.Handles)
	assert.Equal(t, 0, feed.reveals)
}

func TestLoop_StableAtZeroYieldsNoResults(t *testing.T) {
	feed := &fakeFeed{counts: []int{0}}
	res, err := newTestLoop(feed).Run(context.Background(), "q", 20)
	require.NoError(t, err)

	assert.Equal(t, StateNoResults, res.Final)
	assert.Empty(t, res.Handles)
	assert.Equal(t, 3, feed.polls)
}

func TestLoop_MaxRoundsBoundsSlowGrowth(t *testing.T) {
	counts := make([]int, 100)
	for i := range counts {
		counts[i] = i + 1
	}
	feed := &fakeFeed{counts: counts}
	loop := NewLoop(feed, Options{Sleep: noSleep, MaxRounds: 10})

	res, err := loop.Run(context.Background(), "q", 1000)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Rounds)
	assert.Len(t, res.Handles, 10)
}

func TestLoop_CountErrorCountsAsStagnantPoll(t *testing.T) {
	feed := &fakeFeed{
		counts:   []int{4, 4, 4, 4},
		countErr: map[int]error{1: errors.New("evaluate failed")},
	}
	res, err := newTestLoop(feed).Run(context.Background(), "q", 20)
	require.NoError(t, err)
	assert.Equal(t, 4, feed.polls)
	assert.Len(t, res.Handles, 4)
}

func TestLoop_RevealErrorIsRecovered(t *testing.T) {
	feed := &fakeFeed{counts: []int{3, 6}, revealErr: errors.New("scroll failed")}
	res, err := newTestLoop(feed).Run(context.Background(), "q", 6)
	require.NoError(t, err)
	assert.Len(t, res.Handles, 6)
}

func TestLoop_SurfaceLostIsFatal(t *testing.T) {
	feed := &fakeFeed{
		counts:   []int{3},
		countErr: map[int]error{0: eris.Wrap(browser.ErrSurfaceLost, "crash")},
	}
	_, err := newTestLoop(feed).Run(context.Background(), "q", 6)
	require.Error(t, err)
	assert.True(t, eris.Is(err, browser.ErrSurfaceLost))
}

func TestLoop_SearchFailureYieldsNoResults(t *testing.T) {
	feed := &fakeFeed{counts: []int{3}, searchErr: errors.New("search box missing")}
	res, err := newTestLoop(feed).Run(context.Background(), "q", 6)
	require.NoError(t, err)
	assert.Equal(t, StateNoResults, res.Final)
}

func TestLoop_CancelledKeepsWhatWasRevealed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := &fakeFeed{counts: []int{4, 8, 12, 16}}
	loop := NewLoop(feed, Options{Sleep: func(ctx context.Context, _ time.Duration) error {
		if feed.polls == 2 {
			cancel()
		}
		return ctx.Err()
	}})

	res, err := loop.Run(ctx, "q", 100)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, 8, res.Count)
	assert.Len(t, res.Handles, 8)
}

func TestLoop_RejectsNonPositiveTarget(t *testing.T) {
	_, err := newTestLoop(&fakeFeed{counts: []int{1}}).Run(context.Background(), "q", 0)
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "searching", StateSearching.String())
	assert.Equal(t, "revealing", StateRevealing.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "no_results", StateNoResults.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, Sleep(ctx, time.Hour))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
