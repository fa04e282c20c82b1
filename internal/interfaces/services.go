// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"
	"io"

	"github.com/bobmcallan/folio/internal/models"
)

// ValuationService computes current portfolio state from the ledger and live prices.
type ValuationService interface {
	// ValuePortfolio returns totals and per-asset positions for one portfolio
	ValuePortfolio(ctx context.Context, portfolioID string) (*models.PortfolioValuation, error)

	// ValueUserPortfolios values every portfolio owned by userID
	ValueUserPortfolios(ctx context.Context, userID string) ([]*models.PortfolioValuation, error)
}

// AnalyticsService computes performance and risk reports over a date range.
type AnalyticsService interface {
	// GetAnalytics returns the report for rangeToken, served from cache when current
	GetAnalytics(ctx context.Context, portfolioID, rangeToken string, opts AnalyticsRequest) (*models.AnalyticsReport, error)

	// RenderChart writes a PNG of portfolio vs benchmark growth
	RenderChart(ctx context.Context, portfolioID, rangeToken string, opts AnalyticsRequest) ([]byte, error)

	// Summarize returns a narrative summary of the report
	Summarize(ctx context.Context, portfolioID, rangeToken string, opts AnalyticsRequest) (string, error)

	// InvalidatePortfolio drops cached reports for a portfolio
	InvalidatePortfolio(portfolioID string)
}

// AnalyticsRequest carries per-request overrides.
type AnalyticsRequest struct {
	Benchmark string // empty uses the configured benchmark
}

// LedgerService validates and records ledger writes.
type LedgerService interface {
	CreatePortfolio(ctx context.Context, userID, name, description string) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, portfolioID string) error
	CreateAsset(ctx context.Context, portfolioID string, asset models.Asset) (*models.Asset, error)
	DeleteAsset(ctx context.Context, portfolioID, assetID string) error

	ListTransactions(ctx context.Context, portfolioID, assetID string) ([]models.TransactionRecord, error)
	AppendTransaction(ctx context.Context, portfolioID, assetID string, rec models.TransactionRecord) (*models.TransactionRecord, error)
	UpdateTransaction(ctx context.Context, portfolioID, assetID string, rec models.TransactionRecord) (*models.TransactionRecord, error)
	DeleteTransaction(ctx context.Context, portfolioID, assetID, txID string) error

	// ImportCSV appends every row of r or none of them
	ImportCSV(ctx context.Context, portfolioID, assetID string, r io.Reader) ([]models.TransactionRecord, error)
}
