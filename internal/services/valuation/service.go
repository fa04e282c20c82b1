package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Service implements ValuationService
type Service struct {
	store       interfaces.LedgerStore
	feed        interfaces.PriceFeed
	logger      *common.Logger
	concurrency int
}

// NewService creates a new valuation service. concurrency bounds the
// per-asset fan-out; values below 1 mean 8.
func NewService(store interfaces.LedgerStore, feed interfaces.PriceFeed, logger *common.Logger, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Service{
		store:       store,
		feed:        feed,
		logger:      logger,
		concurrency: concurrency,
	}
}

// ValuePortfolio loads a portfolio's assets and ledgers, prices every asset
// concurrently, then aggregates once all positions are in.
func (s *Service) ValuePortfolio(ctx context.Context, portfolioID string) (*models.PortfolioValuation, error) {
	start := time.Now()

	p, err := s.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", portfolioID, err)
	}

	assets, err := s.store.ListAssets(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets for %s: %w", portfolioID, err)
	}

	positions := make([]models.Position, len(assets))
	quoteTimes := make([]time.Time, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, asset := range assets {
		g.Go(func() error {
			txs, err := s.store.ListTransactions(gctx, asset.ID)
			if err != nil {
				return fmt.Errorf("failed to list transactions for asset %s: %w", asset.ID, err)
			}
			priced, ts := s.priceAsset(gctx, asset)
			positions[i] = ComputePosition(priced, txs)
			quoteTimes[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	valuation := ComputePortfolioTotals(*p, positions)
	for _, ts := range quoteTimes {
		if ts.After(valuation.PricedAt) {
			valuation.PricedAt = ts
		}
	}

	s.logger.Info().
		Str("portfolio", portfolioID).
		Int("assets", len(assets)).
		Int("unpriced", valuation.UnpricedCount).
		Float64("value", valuation.CurrentValue).
		Dur("elapsed", time.Since(start)).
		Msg("Portfolio valued")

	return &valuation, nil
}

// priceAsset returns the asset with CurrentPrice set from the feed when a
// quote exists. Cash is always worth 1 per unit. Without a quote the stored
// static price is kept, which may itself be unset.
func (s *Service) priceAsset(ctx context.Context, asset models.Asset) (models.Asset, time.Time) {
	if asset.IsCash() {
		one := 1.0
		asset.CurrentPrice = &one
		return asset, time.Time{}
	}
	if s.feed == nil || asset.Symbol == "" {
		return asset, time.Time{}
	}

	q, err := s.feed.CurrentPrice(ctx, asset.Symbol)
	if err != nil {
		if !errors.Is(err, common.ErrPriceUnavailable) {
			s.logger.Warn().Err(err).Str("symbol", asset.Symbol).Msg("Price feed failed, using stored price")
		}
		return asset, time.Time{}
	}

	price := q.Price
	asset.CurrentPrice = &price
	return asset, q.Timestamp
}

// ValueUserPortfolios values each of a user's portfolios in turn.
func (s *Service) ValueUserPortfolios(ctx context.Context, userID string) ([]*models.PortfolioValuation, error) {
	portfolios, err := s.store.ListPortfolios(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios for user %s: %w", userID, err)
	}

	out := make([]*models.PortfolioValuation, 0, len(portfolios))
	for _, p := range portfolios {
		v, err := s.ValuePortfolio(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Ensure Service implements ValuationService
var _ interfaces.ValuationService = (*Service)(nil)
