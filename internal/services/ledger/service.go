// Package ledger validates and records portfolio, asset and transaction writes
package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/services/valuation"
)

// Compile-time interface check
var _ interfaces.LedgerService = (*Service)(nil)

// Invalidator drops derived state for a portfolio after its ledger changes.
type Invalidator interface {
	InvalidatePortfolio(portfolioID string)
}

// Service implements LedgerService
type Service struct {
	store       interfaces.LedgerStore
	invalidator Invalidator
	logger      *common.Logger
	now         func() time.Time
}

// NewService creates a new ledger service. invalidator may be nil.
func NewService(store interfaces.LedgerStore, invalidator Invalidator, logger *common.Logger) *Service {
	return &Service{
		store:       store,
		invalidator: invalidator,
		logger:      logger,
		now:         time.Now,
	}
}

func newID() string {
	return uuid.NewString()
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, common.ErrMalformedTransaction)...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validateTransaction decodes rec and applies the write-time rules on top of
// the variant checks done by Decode.
func validateTransaction(rec models.TransactionRecord) (models.Transaction, error) {
	tx, err := rec.Decode()
	if err != nil {
		return models.Transaction{}, err
	}
	if !finite(rec.Fees) {
		return models.Transaction{}, malformed("fees must be a finite number")
	}

	switch {
	case tx.Buy != nil:
		err = checkTrade(tx.Buy.Quantity, tx.Buy.Price)
	case tx.Sell != nil:
		err = checkTrade(tx.Sell.Quantity, tx.Sell.Price)
	case tx.Dividend != nil:
		if !finite(tx.Dividend.Amount) || tx.Dividend.Amount < 0 {
			err = malformed("dividend amount must be non-negative, got %v", tx.Dividend.Amount)
		}
	}
	if err != nil {
		return models.Transaction{}, err
	}

	tx.Date = models.CalendarDate(tx.Date)
	return tx, nil
}

func checkTrade(quantity, price float64) error {
	if !finite(quantity) || quantity <= 0 {
		return malformed("quantity must be positive, got %v", quantity)
	}
	if !finite(price) || price < 0 {
		return malformed("price must be non-negative, got %v", price)
	}
	return nil
}

// bumpAttempts bounds retries of a failed ledger version bump.
const bumpAttempts = 3

// ledgerChanged drops cached analytics and bumps the portfolio's ledger
// version. Cached reports are dropped even when the bump fails.
func (s *Service) ledgerChanged(ctx context.Context, portfolioID string) error {
	if s.invalidator != nil {
		s.invalidator.InvalidatePortfolio(portfolioID)
	}

	var lastErr error
	for attempt := 1; attempt <= bumpAttempts; attempt++ {
		version, err := s.store.BumpLedgerVersion(ctx, portfolioID)
		if err == nil {
			s.logger.Debug().Str("portfolio", portfolioID).Int64("ledger_version", version).Msg("Ledger version bumped")
			return nil
		}
		lastErr = err
		s.logger.Warn().Err(err).Str("portfolio", portfolioID).Int("attempt", attempt).Msg("Ledger version bump failed")
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("failed to bump ledger version for %s: %w", portfolioID, lastErr)
}

// assetInPortfolio loads an asset and checks it belongs to portfolioID.
func (s *Service) assetInPortfolio(ctx context.Context, portfolioID, assetID string) (*models.Asset, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.PortfolioID != portfolioID {
		return nil, fmt.Errorf("asset %s in portfolio %s: %w", assetID, portfolioID, common.ErrNotFound)
	}
	return asset, nil
}

// CreatePortfolio creates an empty portfolio owned by userID.
func (s *Service) CreatePortfolio(ctx context.Context, userID, name, description string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("portfolio name is required: %w", common.ErrInvalidInput)
	}
	if len(name) > 100 {
		return nil, fmt.Errorf("portfolio name exceeds 100 characters: %w", common.ErrInvalidInput)
	}

	if strings.TrimSpace(userID) == "" {
		userID = common.DefaultUserID
	}

	now := s.now().UTC()
	p := &models.Portfolio{
		ID:          newID(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SavePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}

	s.logger.Info().Str("portfolio", p.ID).Str("user", p.UserID).Str("name", p.Name).Msg("Portfolio created")
	return p, nil
}

// DeletePortfolio removes a portfolio with its assets and transactions.
func (s *Service) DeletePortfolio(ctx context.Context, portfolioID string) error {
	if err := s.store.DeletePortfolio(ctx, portfolioID); err != nil {
		return err
	}
	if s.invalidator != nil {
		s.invalidator.InvalidatePortfolio(portfolioID)
	}
	s.logger.Info().Str("portfolio", portfolioID).Msg("Portfolio deleted")
	return nil
}

// CreateAsset adds an asset to a portfolio.
func (s *Service) CreateAsset(ctx context.Context, portfolioID string, asset models.Asset) (*models.Asset, error) {
	if _, err := s.store.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}

	asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
	asset.Name = strings.TrimSpace(asset.Name)
	asset.Currency = strings.ToUpper(strings.TrimSpace(asset.Currency))
	if !asset.Type.IsValid() {
		return nil, fmt.Errorf("invalid asset type %q: %w", asset.Type, common.ErrInvalidInput)
	}
	if asset.Symbol == "" && !asset.IsCash() {
		return nil, fmt.Errorf("asset symbol is required: %w", common.ErrInvalidInput)
	}
	if asset.CurrentPrice != nil && (!finite(*asset.CurrentPrice) || *asset.CurrentPrice < 0) {
		return nil, fmt.Errorf("current price must be non-negative: %w", common.ErrInvalidInput)
	}
	if asset.Name == "" {
		asset.Name = asset.Symbol
	}

	asset.ID = newID()
	asset.PortfolioID = portfolioID
	asset.CreatedAt = s.now().UTC()
	if err := s.store.SaveAsset(ctx, &asset); err != nil {
		return nil, fmt.Errorf("failed to save asset: %w", err)
	}
	if err := s.ledgerChanged(ctx, portfolioID); err != nil {
		return nil, err
	}

	s.logger.Info().Str("portfolio", portfolioID).Str("asset", asset.ID).
		Str("symbol", asset.Symbol).Str("type", string(asset.Type)).Msg("Asset created")
	return &asset, nil
}

// DeleteAsset removes an asset and its ledger.
func (s *Service) DeleteAsset(ctx context.Context, portfolioID, assetID string) error {
	if _, err := s.assetInPortfolio(ctx, portfolioID, assetID); err != nil {
		return err
	}
	if err := s.store.DeleteAsset(ctx, assetID); err != nil {
		return err
	}
	if err := s.ledgerChanged(ctx, portfolioID); err != nil {
		return err
	}
	s.logger.Info().Str("portfolio", portfolioID).Str("asset", assetID).Msg("Asset deleted")
	return nil
}

// ListTransactions returns an asset's ledger in replay order.
func (s *Service) ListTransactions(ctx context.Context, portfolioID, assetID string) ([]models.TransactionRecord, error) {
	if _, err := s.assetInPortfolio(ctx, portfolioID, assetID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return records(valuation.SortLedger(txs)), nil
}

// AppendTransaction validates rec and appends it to the asset's ledger.
func (s *Service) AppendTransaction(ctx context.Context, portfolioID, assetID string, rec models.TransactionRecord) (*models.TransactionRecord, error) {
	if _, err := s.assetInPortfolio(ctx, portfolioID, assetID); err != nil {
		return nil, err
	}
	rec.AssetID = assetID
	tx, err := validateTransaction(rec)
	if err != nil {
		return nil, err
	}

	tx.ID = newID()
	if err := s.store.AppendTransaction(ctx, &tx); err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	if err := s.ledgerChanged(ctx, portfolioID); err != nil {
		s.rollback(ctx, assetID, []models.Transaction{tx})
		return nil, err
	}

	s.logger.Info().Str("portfolio", portfolioID).Str("asset", assetID).Str("id", tx.ID).
		Str("kind", string(tx.Kind)).Int64("seq", tx.Seq).Msg("Transaction appended")
	out := tx.Record()
	return &out, nil
}

// UpdateTransaction replaces an existing entry, keeping its id and sequence.
func (s *Service) UpdateTransaction(ctx context.Context, portfolioID, assetID string, rec models.TransactionRecord) (*models.TransactionRecord, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return nil, fmt.Errorf("transaction id is required: %w", common.ErrInvalidInput)
	}
	if _, err := s.assetInPortfolio(ctx, portfolioID, assetID); err != nil {
		return nil, err
	}
	rec.AssetID = assetID
	tx, err := validateTransaction(rec)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateTransaction(ctx, &tx); err != nil {
		return nil, err
	}
	if err := s.ledgerChanged(ctx, portfolioID); err != nil {
		return nil, err
	}

	s.logger.Info().Str("portfolio", portfolioID).Str("asset", assetID).Str("id", tx.ID).Msg("Transaction updated")
	out := tx.Record()
	return &out, nil
}

// DeleteTransaction removes one entry from an asset's ledger.
func (s *Service) DeleteTransaction(ctx context.Context, portfolioID, assetID, txID string) error {
	if _, err := s.assetInPortfolio(ctx, portfolioID, assetID); err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, assetID, txID); err != nil {
		return err
	}
	if err := s.ledgerChanged(ctx, portfolioID); err != nil {
		return err
	}
	s.logger.Info().Str("portfolio", portfolioID).Str("asset", assetID).Str("id", txID).Msg("Transaction deleted")
	return nil
}

func records(txs []models.Transaction) []models.TransactionRecord {
	out := make([]models.TransactionRecord, len(txs))
	for i, tx := range txs {
		out[i] = tx.Record()
	}
	return out
}
