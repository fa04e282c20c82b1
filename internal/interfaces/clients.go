// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// PriceFeed supplies current and historical prices.
type PriceFeed interface {
	// CurrentPrice returns the latest quote, or an error wrapping
	// common.ErrPriceUnavailable when the symbol has none.
	CurrentPrice(ctx context.Context, symbol string) (models.Quote, error)

	// HistoricalSeries returns daily closes in ascending date order.
	HistoricalSeries(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error)

	// BenchmarkSeries returns index closes in ascending date order.
	BenchmarkSeries(ctx context.Context, benchmarkID string, start, end time.Time) ([]models.PricePoint, error)
}

// NarrativeGenerator produces prose from a prompt.
type NarrativeGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}
