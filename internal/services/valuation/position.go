// Package valuation derives current positions and portfolio totals from the ledger.
package valuation

import (
	"sort"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// SortLedger returns a copy of txs ordered by (date, seq). Entries with equal
// date and seq keep their input order.
func SortLedger(txs []models.Transaction) []models.Transaction {
	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	return sorted
}

// ComputePosition replays an asset's ledger against its current price.
//
// Cost basis is the lifetime sum of buy quantity times buy price: sells do not
// reduce it and fees are not part of it. An asset without a current price is
// valued at 1 per unit and flagged Unpriced. Input is assumed well-formed.
func ComputePosition(asset models.Asset, txs []models.Transaction) models.Position {
	var quantity, bought, costBasis, dividends float64

	for _, tx := range SortLedger(txs) {
		switch {
		case tx.Buy != nil:
			quantity += tx.Buy.Quantity
			bought += tx.Buy.Quantity
			costBasis += tx.Buy.Quantity * tx.Buy.Price
		case tx.Sell != nil:
			quantity -= tx.Sell.Quantity
		case tx.Dividend != nil:
			dividends += tx.Dividend.Amount
		}
	}

	price, unpriced := 1.0, true
	if asset.CurrentPrice != nil {
		price, unpriced = *asset.CurrentPrice, false
	}

	pos := models.Position{
		AssetID:        asset.ID,
		Symbol:         asset.Symbol,
		Name:           asset.Name,
		Type:           asset.Type,
		Quantity:       quantity,
		CostBasis:      costBasis,
		CurrentPrice:   price,
		CurrentValue:   quantity * price,
		TotalDividends: dividends,
		Unpriced:       unpriced,
	}
	if bought > 0 {
		pos.AvgBuyPrice = costBasis / bought
	}
	pos.Change = pos.CurrentValue - costBasis
	if costBasis > 0 {
		pos.ChangePercent = pos.Change * 100 / costBasis
	}
	return pos
}

// QuantityAsOf replays a date-sorted ledger up to and including cutoff.
// It returns the held quantity and how many entries were consumed, so callers
// walking forward in time can resume from that index.
func QuantityAsOf(sorted []models.Transaction, from int, quantity float64, cutoff time.Time) (float64, int) {
	i := from
	for ; i < len(sorted); i++ {
		if models.CalendarDate(sorted[i].Date).After(cutoff) {
			break
		}
		quantity += sorted[i].QuantityDelta()
	}
	return quantity, i
}
