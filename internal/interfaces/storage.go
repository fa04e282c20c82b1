// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// LedgerStore persists portfolios, assets and their transaction ledgers.
// Lookups of a missing record return an error wrapping common.ErrNotFound.
type LedgerStore interface {
	// Read side
	ListTransactions(ctx context.Context, assetID string) ([]models.Transaction, error)
	ListAssets(ctx context.Context, portfolioID string) ([]models.Asset, error)
	ListPortfolios(ctx context.Context, userID string) ([]models.Portfolio, error)
	GetPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error)
	GetAsset(ctx context.Context, assetID string) (*models.Asset, error)

	// Write side
	SavePortfolio(ctx context.Context, p *models.Portfolio) error
	SaveAsset(ctx context.Context, a *models.Asset) error
	// AppendTransaction stores tx, assigning the next per-asset Seq.
	AppendTransaction(ctx context.Context, tx *models.Transaction) error
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, assetID, txID string) error
	DeleteAsset(ctx context.Context, assetID string) error
	DeletePortfolio(ctx context.Context, portfolioID string) error

	// LedgerVersion is a counter bumped by every write under a portfolio.
	LedgerVersion(ctx context.Context, portfolioID string) (int64, error)
	BumpLedgerVersion(ctx context.Context, portfolioID string) (int64, error)

	Close() error
}
