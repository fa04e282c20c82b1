package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/services/valuation"
)

// seriesLookback widens history requests so a close on or before the range
// start is available for forward fill across weekends and holidays.
const seriesLookback = 10 * 24 * time.Hour

// SeriesInput is everything BuildSeries needs about one portfolio.
type SeriesInput struct {
	Assets      []models.Asset
	Ledgers     map[string][]models.Transaction // by asset id
	Range       models.DateRange
	BenchmarkID string // empty disables the benchmark
	Concurrency int
}

// assetTrack replays one asset's ledger and prices while walking the date axis.
type assetTrack struct {
	asset    models.Asset
	ledger   []models.Transaction // sorted
	cursor   int
	quantity float64

	closes    []models.PricePoint // ascending
	priceIdx  int                 // index of the next close not yet consumed
	lastClose float64
	hasClose  bool
	static    *float64 // constant price when there is no history
}

func (a *assetTrack) advance(date time.Time) {
	a.quantity, a.cursor = valuation.QuantityAsOf(a.ledger, a.cursor, a.quantity, date)
	for a.priceIdx < len(a.closes) && !models.CalendarDate(a.closes[a.priceIdx].Date).After(date) {
		a.lastClose = a.closes[a.priceIdx].Close
		a.hasClose = true
		a.priceIdx++
	}
}

// priceAt reports the forward-filled price for the current date.
func (a *assetTrack) priceAt() (float64, bool) {
	if a.hasClose {
		return a.lastClose, true
	}
	if len(a.closes) == 0 && a.static != nil {
		return *a.static, true
	}
	return 0, false
}

// BuildSeries reconstructs daily portfolio value over in.Range from historical
// closes and the quantity held on each date, and aligns a benchmark series to
// the same date axis.
//
// The axis is every date in range with at least one price observation (every
// calendar date when nothing has history, e.g. a cash-only portfolio). Prices
// forward-fill. Cash is valued at 1; assets with no history fall back to a
// static price when one is set and are otherwise ignored. A date is kept only
// when every asset with a non-zero holding has a price and the total is
// positive. With a benchmark, only dates on which the benchmark is also defined
// survive.
func BuildSeries(ctx context.Context, feed interfaces.PriceFeed, in SeriesInput) (*models.AlignedSeries, error) {
	rng := in.Range
	out := &models.AlignedSeries{Range: rng, BenchmarkID: in.BenchmarkID}

	fetchStart := rng.Start.Add(-seriesLookback)
	tracks := make([]*assetTrack, len(in.Assets))
	var benchmark []models.PricePoint

	g, gctx := errgroup.WithContext(ctx)
	if in.Concurrency > 0 {
		g.SetLimit(in.Concurrency)
	}
	for i, asset := range in.Assets {
		track := &assetTrack{
			asset:  asset,
			ledger: valuation.SortLedger(in.Ledgers[asset.ID]),
			static: asset.CurrentPrice,
		}
		tracks[i] = track
		if asset.IsCash() {
			one := 1.0
			track.static = &one
			continue
		}
		if strings.TrimSpace(asset.Symbol) == "" {
			continue
		}
		g.Go(func() error {
			closes, err := feed.HistoricalSeries(gctx, asset.Symbol, fetchStart, rng.End)
			if err != nil {
				return fmt.Errorf("history for %s: %w", asset.Symbol, err)
			}
			track.closes = sortedCloses(closes)
			return nil
		})
	}
	if in.BenchmarkID != "" {
		g.Go(func() error {
			closes, err := feed.BenchmarkSeries(gctx, in.BenchmarkID, fetchStart, rng.End)
			if err != nil {
				return fmt.Errorf("benchmark %s: %w", in.BenchmarkID, err)
			}
			benchmark = sortedCloses(closes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dates := seriesDates(rng, tracks, benchmark)
	bench := &assetTrack{closes: benchmark}
	hasBenchmark := len(benchmark) > 0

	for _, date := range dates {
		bench.advance(date)

		total, complete := 0.0, true
		for _, tr := range tracks {
			tr.advance(date)
			if tr.quantity == 0 {
				continue
			}
			px, ok := tr.priceAt()
			if !ok {
				if len(tr.closes) == 0 && tr.static == nil {
					continue // never priceable, left out of the series
				}
				complete = false
				continue
			}
			total += tr.quantity * px
		}
		if !complete || total <= 0 {
			continue
		}

		if hasBenchmark {
			bv, ok := bench.priceAt()
			if !ok || bv <= 0 {
				continue
			}
			out.Benchmark = append(out.Benchmark, models.SeriesPoint{Date: date, Value: bv})
		}
		out.Portfolio = append(out.Portfolio, models.SeriesPoint{Date: date, Value: total})
	}

	out.HasBenchmark = hasBenchmark && len(out.Benchmark) > 0
	out.Insufficient = len(out.Portfolio) < 2
	return out, nil
}

func sortedCloses(points []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Close > 0 {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// seriesDates returns the in-range dates carrying any observation, or every
// calendar date when no series has data.
func seriesDates(rng models.DateRange, tracks []*assetTrack, benchmark []models.PricePoint) []time.Time {
	seen := make(map[time.Time]struct{})
	add := func(points []models.PricePoint) {
		for _, p := range points {
			d := models.CalendarDate(p.Date)
			if d.Before(rng.Start) || d.After(rng.End) {
				continue
			}
			seen[d] = struct{}{}
		}
	}
	for _, tr := range tracks {
		add(tr.closes)
	}
	add(benchmark)

	if len(seen) == 0 {
		return generateCalendarDates(rng.Start, rng.End)
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// generateCalendarDates produces one date per day from start to end (inclusive).
func generateCalendarDates(start, end time.Time) []time.Time {
	start = models.CalendarDate(start)
	end = models.CalendarDate(end)
	if end.Before(start) {
		return nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	dates := make([]time.Time, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
