package valuation

import (
	"github.com/bobmcallan/folio/internal/models"
)

// ComputePortfolioTotals sums positions into portfolio totals and sets each
// position's allocation as a percentage of total current value. When the
// total is zero every allocation is zero. The input slice is not modified.
func ComputePortfolioTotals(portfolio models.Portfolio, positions []models.Position) models.PortfolioValuation {
	out := models.PortfolioValuation{
		Portfolio: portfolio,
		Positions: make([]models.Position, len(positions)),
	}
	copy(out.Positions, positions)

	totals := &out.PortfolioTotals
	for _, p := range out.Positions {
		totals.CostBasis += p.CostBasis
		totals.CurrentValue += p.CurrentValue
		totals.TotalDividends += p.TotalDividends
		if p.Unpriced {
			totals.UnpricedCount++
		}
	}
	totals.AssetsCount = len(out.Positions)
	totals.Change = totals.CurrentValue - totals.CostBasis
	if totals.CostBasis > 0 {
		totals.ChangePercent = totals.Change * 100 / totals.CostBasis
	}

	for i := range out.Positions {
		if totals.CurrentValue != 0 {
			out.Positions[i].Allocation = out.Positions[i].CurrentValue * 100 / totals.CurrentValue
		} else {
			out.Positions[i].Allocation = 0
		}
	}
	return out
}
