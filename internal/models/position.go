package models

import "time"

// Position is the derived state of one asset after replaying its ledger.
type Position struct {
	AssetID        string    `json:"assetId"`
	Symbol         string    `json:"symbol"`
	Name           string    `json:"name"`
	Type           AssetType `json:"type"`
	Quantity       float64   `json:"quantity"`
	CostBasis      float64   `json:"costBasis"`
	AvgBuyPrice    float64   `json:"avgBuyPrice"`
	CurrentPrice   float64   `json:"currentPrice"`
	CurrentValue   float64   `json:"currentValue"`
	Change         float64   `json:"change"`
	ChangePercent  float64   `json:"changePercent"`
	Allocation     float64   `json:"allocation"`
	TotalDividends float64   `json:"totalDividends"`
	Unpriced       bool      `json:"unpriced"`
}

// PortfolioTotals are the derived portfolio-level figures.
type PortfolioTotals struct {
	CostBasis      float64 `json:"costBasis"`
	CurrentValue   float64 `json:"currentValue"`
	Change         float64 `json:"change"`
	ChangePercent  float64 `json:"changePercent"`
	AssetsCount    int     `json:"assetsCount"`
	TotalDividends float64 `json:"totalDividends"`
	UnpricedCount  int     `json:"unpricedCount"`
}

// PortfolioValuation is a portfolio with its totals and per-asset positions.
type PortfolioValuation struct {
	Portfolio
	PortfolioTotals
	Positions []Position `json:"positions"`
	// PricedAt is the newest quote timestamp used, zero when nothing was priced.
	PricedAt time.Time `json:"pricedAt"`
}
