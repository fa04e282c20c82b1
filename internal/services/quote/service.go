// Package quote provides a caching current-price layer over a price feed
package quote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// DefaultTTL is how long a cached quote is served before the feed is asked again.
var DefaultTTL = 15 * time.Minute

// Service wraps a PriceFeed, caching current quotes and remembering every
// symbol it has been asked about so a scheduled job can refresh them.
// Historical and benchmark series pass straight through.
type Service struct {
	feed        interfaces.PriceFeed
	logger      *common.Logger
	ttl         time.Duration
	concurrency int
	now         func() time.Time // injectable clock for testing

	mu     sync.RWMutex
	quotes map[string]cachedQuote
	stamp  time.Time
}

type cachedQuote struct {
	quote     models.Quote
	fetchedAt time.Time
}

// Option configures the quote service
type Option func(*Service)

// WithTTL sets the cache lifetime of a quote
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithConcurrency bounds parallel fetches during Refresh
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new quote service
func NewService(feed interfaces.PriceFeed, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		feed:        feed,
		logger:      logger,
		ttl:         DefaultTTL,
		concurrency: 8,
		now:         time.Now,
		quotes:      make(map[string]cachedQuote),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// CurrentPrice returns a cached quote while fresh, otherwise asks the feed.
func (s *Service) CurrentPrice(ctx context.Context, symbol string) (models.Quote, error) {
	key := normalizeSymbol(symbol)

	s.mu.RLock()
	cached, ok := s.quotes[key]
	s.mu.RUnlock()
	if ok && !s.isStale(cached.fetchedAt) {
		return cached.quote, nil
	}

	return s.fetch(ctx, key)
}

func (s *Service) fetch(ctx context.Context, key string) (models.Quote, error) {
	q, err := s.feed.CurrentPrice(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrPriceUnavailable) {
			s.track(key)
		}
		return models.Quote{}, err
	}
	if q.Price <= 0 {
		s.track(key)
		return models.Quote{}, fmt.Errorf("non-positive quote for %s: %w", key, common.ErrPriceUnavailable)
	}
	s.store(key, q)
	return q, nil
}

// track remembers a symbol without a usable quote so Refresh retries it.
func (s *Service) track(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quotes[key]; !ok {
		s.quotes[key] = cachedQuote{}
	}
}

func (s *Service) store(key string, q models.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[key] = cachedQuote{quote: q, fetchedAt: s.now()}
	if q.Timestamp.After(s.stamp) {
		s.stamp = q.Timestamp
	}
}

// HistoricalSeries passes through to the feed
func (s *Service) HistoricalSeries(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	return s.feed.HistoricalSeries(ctx, symbol, start, end)
}

// BenchmarkSeries passes through to the feed
func (s *Service) BenchmarkSeries(ctx context.Context, benchmarkID string, start, end time.Time) ([]models.PricePoint, error) {
	return s.feed.BenchmarkSeries(ctx, benchmarkID, start, end)
}

// Stamp is the newest quote timestamp seen. It changes whenever a fresher
// price arrives and is used to key cached analytics.
func (s *Service) Stamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stamp
}

// Symbols lists every tracked symbol in sorted order.
func (s *Service) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.quotes))
	for k := range s.quotes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Refresh re-fetches every tracked symbol. Unavailable symbols are logged
// and skipped; the first other error is returned after all fetches finish.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	symbols := s.Symbols()
	if len(symbols) == 0 {
		return 0, nil
	}

	start := s.now()
	var (
		mu        sync.Mutex
		refreshed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, sym := range symbols {
		g.Go(func() error {
			if _, err := s.fetch(gctx, sym); err != nil {
				if errors.Is(err, common.ErrPriceUnavailable) {
					s.logger.Debug().Str("symbol", sym).Msg("No quote available during refresh")
					return nil
				}
				return fmt.Errorf("refresh %s: %w", sym, err)
			}
			mu.Lock()
			refreshed++
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	s.logger.Info().
		Int("symbols", len(symbols)).
		Int("refreshed", refreshed).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Quote refresh complete")

	return refreshed, err
}

// isStale returns true when a quote was fetched longer than ttl ago.
func (s *Service) isStale(fetchedAt time.Time) bool {
	if fetchedAt.IsZero() {
		return true
	}
	return s.now().Sub(fetchedAt) > s.ttl
}

// Ensure Service implements PriceFeed
var _ interfaces.PriceFeed = (*Service)(nil)
