package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// PriceStamper reports the timestamp of the newest known price.
type PriceStamper interface {
	Stamp() time.Time
}

// Config holds the service's constructor-time settings.
type Config struct {
	Options      Options
	DefaultRange string
	CacheSize    int
	Concurrency  int
	Currency     string // display currency for narratives
}

// Service implements AnalyticsService
type Service struct {
	store     interfaces.LedgerStore
	feed      interfaces.PriceFeed
	valuation interfaces.ValuationService
	narrator  interfaces.NarrativeGenerator
	stamper   PriceStamper
	cache     *ReportCache
	cfg       Config
	logger    *common.Logger
	now       func() time.Time
}

// NewService creates a new analytics service. narrator and stamper may be nil.
func NewService(
	store interfaces.LedgerStore,
	feed interfaces.PriceFeed,
	valuation interfaces.ValuationService,
	narrator interfaces.NarrativeGenerator,
	stamper PriceStamper,
	cfg Config,
	logger *common.Logger,
) *Service {
	if cfg.DefaultRange == "" {
		cfg.DefaultRange = "1Y"
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	return &Service{
		store:     store,
		feed:      feed,
		valuation: valuation,
		narrator:  narrator,
		stamper:   stamper,
		cache:     NewReportCache(cfg.CacheSize),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// NewConfig maps the [analytics] config section onto Config.
func NewConfig(c common.AnalyticsConfig) Config {
	return Config{
		Options: Options{
			RiskFreeRate:     c.RiskFreeRate,
			BenchmarkEnabled: c.BenchmarkEnabled,
			BenchmarkID:      c.Benchmark,
		},
		DefaultRange: c.DefaultRange,
		CacheSize:    c.CacheSize,
		Concurrency:  c.Concurrency,
	}
}

// request is a resolved analytics request.
type request struct {
	portfolioID string
	rng         models.DateRange
	opts        Options
}

func (s *Service) resolve(portfolioID, rangeToken string, req interfaces.AnalyticsRequest) request {
	if strings.TrimSpace(rangeToken) == "" {
		rangeToken = s.cfg.DefaultRange
	}
	opts := s.cfg.Options
	if b := strings.ToUpper(strings.TrimSpace(req.Benchmark)); b != "" {
		opts.BenchmarkID = b
	}
	if !opts.BenchmarkEnabled {
		opts.BenchmarkID = ""
	}
	return request{
		portfolioID: portfolioID,
		rng:         ResolveRange(rangeToken, s.now()),
		opts:        opts,
	}
}

// GetAnalytics returns the report for a portfolio and range, computing it on
// a cache miss. The cache key carries the ledger version and price stamp, so
// a hit is always current.
func (s *Service) GetAnalytics(ctx context.Context, portfolioID, rangeToken string, req interfaces.AnalyticsRequest) (*models.AnalyticsReport, error) {
	r := s.resolve(portfolioID, rangeToken, req)

	if _, err := s.store.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", portfolioID, err)
	}
	version, err := s.store.LedgerVersion(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger version for %s: %w", portfolioID, err)
	}

	key := CacheKey{
		PortfolioID:   portfolioID,
		LedgerVersion: version,
		Range:         r.rng.Token + "@" + r.rng.End.Format("2006-01-02"),
		Benchmark:     r.opts.BenchmarkID,
	}
	if s.stamper != nil {
		key.PriceStamp = s.stamper.Stamp()
	}

	start := time.Now()
	report, hit, err := s.cache.GetOrCompute(key, func() (*models.AnalyticsReport, error) {
		series, err := s.buildSeries(ctx, r)
		if err != nil {
			return nil, err
		}
		rep := ComputeAnalytics(series.Portfolio, series.Benchmark, r.opts)
		rep.PortfolioID = portfolioID
		rep.Range = r.rng.Token
		if rep.DataPoints == 0 {
			rep.StartDate, rep.EndDate = r.rng.Start, r.rng.End
		}
		return rep, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("portfolio", portfolioID).
		Str("range", r.rng.Token).
		Int64("ledger_version", version).
		Bool("cache_hit", hit).
		Int("points", report.DataPoints).
		Dur("elapsed", time.Since(start)).
		Msg("Analytics computed")

	return report, nil
}

// buildSeries loads the ledger snapshot and reconstructs the value series.
func (s *Service) buildSeries(ctx context.Context, r request) (*models.AlignedSeries, error) {
	assets, err := s.store.ListAssets(ctx, r.portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets for %s: %w", r.portfolioID, err)
	}

	ledgers := make(map[string][]models.Transaction, len(assets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Concurrency > 0 {
		g.SetLimit(s.cfg.Concurrency)
	}
	for _, a := range assets {
		g.Go(func() error {
			txs, err := s.store.ListTransactions(gctx, a.ID)
			if err != nil {
				return fmt.Errorf("failed to list transactions for asset %s: %w", a.ID, err)
			}
			mu.Lock()
			ledgers[a.ID] = txs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return BuildSeries(ctx, s.feed, SeriesInput{
		Assets:      assets,
		Ledgers:     ledgers,
		Range:       r.rng,
		BenchmarkID: r.opts.BenchmarkID,
		Concurrency: s.cfg.Concurrency,
	})
}

// RenderChart draws portfolio vs benchmark growth for the range.
func (s *Service) RenderChart(ctx context.Context, portfolioID, rangeToken string, req interfaces.AnalyticsRequest) ([]byte, error) {
	r := s.resolve(portfolioID, rangeToken, req)
	if _, err := s.store.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", portfolioID, err)
	}

	series, err := s.buildSeries(ctx, r)
	if err != nil {
		return nil, err
	}
	if series.Insufficient {
		return nil, fmt.Errorf("portfolio %s over %s: %w", portfolioID, r.rng.Token, common.ErrInsufficientHistory)
	}
	return RenderPerformanceChart(series)
}

// ErrNarrativeUnavailable is returned by Summarize when no generator is configured.
var ErrNarrativeUnavailable = errors.New("narrative generator not configured")

// Summarize asks the narrative generator to describe the portfolio's valuation and analytics.
func (s *Service) Summarize(ctx context.Context, portfolioID, rangeToken string, req interfaces.AnalyticsRequest) (string, error) {
	if s.narrator == nil || s.valuation == nil {
		return "", ErrNarrativeUnavailable
	}

	report, err := s.GetAnalytics(ctx, portfolioID, rangeToken, req)
	if err != nil {
		return "", err
	}
	valuation, err := s.valuation.ValuePortfolio(ctx, portfolioID)
	if err != nil {
		return "", err
	}

	prompt := BuildNarrativePrompt(valuation, report, s.cfg.Currency)
	text, err := s.narrator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// InvalidatePortfolio drops cached reports for a portfolio.
func (s *Service) InvalidatePortfolio(portfolioID string) {
	if n := s.cache.InvalidatePortfolio(portfolioID); n > 0 {
		s.logger.Debug().Str("portfolio", portfolioID).Int("reports", n).Msg("Analytics cache invalidated")
	}
}

// Ensure Service implements AnalyticsService
var _ interfaces.AnalyticsService = (*Service)(nil)
