package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	tcommon "github.com/bobmcallan/folio/test/common"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(feed *tcommon.MockPriceFeed, clock *fakeClock) *Service {
	return NewService(feed, common.NewSilentLogger(), WithClock(clock.now), WithTTL(10*time.Minute))
}

func TestCurrentPrice_CachesWithinTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)}
	feed := tcommon.NewMockPriceFeed()
	feed.SetPrice("AAPL.US", 190, clock.t)
	svc := newTestService(feed, clock)

	q, err := svc.CurrentPrice(context.Background(), "aapl.us")
	require.NoError(t, err)
	assert.Equal(t, 190.0, q.Price)

	feed.SetPrice("AAPL.US", 195, clock.t.Add(time.Minute))
	q, err = svc.CurrentPrice(context.Background(), "AAPL.US")
	require.NoError(t, err)
	assert.Equal(t, 190.0, q.Price, "fresh cached quote should be served")
	assert.Equal(t, 1, feed.CurrentPriceCalls)

	clock.advance(11 * time.Minute)
	q, err = svc.CurrentPrice(context.Background(), "AAPL.US")
	require.NoError(t, err)
	assert.Equal(t, 195.0, q.Price)
	assert.Equal(t, 2, feed.CurrentPriceCalls)
}

func TestCurrentPrice_Unavailable(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	feed := tcommon.NewMockPriceFeed()
	svc := newTestService(feed, clock)

	_, err := svc.CurrentPrice(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPriceUnavailable))
	assert.Equal(t, []string{"NOPE"}, svc.Symbols(), "unavailable symbols are still tracked for refresh")
}

func TestCurrentPrice_NonPositiveIsUnavailable(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	feed := tcommon.NewMockPriceFeed()
	feed.SetPrice("ZERO", 0, clock.t)
	svc := newTestService(feed, clock)

	_, err := svc.CurrentPrice(context.Background(), "ZERO")
	assert.True(t, errors.Is(err, common.ErrPriceUnavailable))
}

func TestStamp_TracksNewestQuote(t *testing.T) {
	base := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: base}
	feed := tcommon.NewMockPriceFeed()
	feed.SetPrice("A", 10, base.Add(-time.Hour))
	feed.SetPrice("B", 20, base.Add(-2*time.Hour))
	svc := newTestService(feed, clock)

	assert.True(t, svc.Stamp().IsZero())

	_, err := svc.CurrentPrice(context.Background(), "A")
	require.NoError(t, err)
	_, err = svc.CurrentPrice(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, base.Add(-time.Hour), svc.Stamp())
}

func TestRefresh_RefetchesTrackedSymbols(t *testing.T) {
	base := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: base}
	feed := tcommon.NewMockPriceFeed()
	feed.SetPrice("A", 10, base)
	svc := newTestService(feed, clock)

	_, err := svc.CurrentPrice(context.Background(), "A")
	require.NoError(t, err)
	_, err = svc.CurrentPrice(context.Background(), "MISSING")
	require.Error(t, err)

	feed.SetPrice("A", 11, base.Add(time.Minute))
	n, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, base.Add(time.Minute), svc.Stamp())

	q, err := svc.CurrentPrice(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 11.0, q.Price)
}

func TestRefresh_PropagatesFeedErrors(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	feed := tcommon.NewMockPriceFeed()
	feed.SetPrice("A", 10, clock.t)
	svc := newTestService(feed, clock)
	_, err := svc.CurrentPrice(context.Background(), "A")
	require.NoError(t, err)

	feed.QuoteErr = errors.New("connection reset")
	_, err = svc.Refresh(context.Background())
	assert.Error(t, err)
}

func TestRefresh_Empty(t *testing.T) {
	svc := newTestService(tcommon.NewMockPriceFeed(), &fakeClock{t: time.Now()})
	n, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
