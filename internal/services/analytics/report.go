package analytics

import (
	"math"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// Options are fixed when the analytics engine is constructed.
type Options struct {
	RiskFreeRate     float64 // annual, decimal
	BenchmarkEnabled bool
	BenchmarkID      string
}

// Unavailability reasons attached to nil metrics.
const (
	reasonInsufficient      = "insufficient history"
	reasonZeroLengthRange   = "series spans zero days"
	reasonWindowTooLong     = "window exceeds available history"
	reasonNoYearData        = "fewer than two points in the current year"
	reasonZeroVolatility    = "zero volatility"
	reasonNoBenchmark       = "no benchmark data"
	reasonFlatBenchmark     = "benchmark variance is zero"
	reasonZeroTrackingError = "zero tracking error"
	reasonNoPeriods         = "no complete calendar period"
	reasonBadBenchmark      = "benchmark has non-positive values"
)

func f64(v float64) *float64 { return &v }

// ComputeAnalytics derives the performance and risk report from a portfolio
// value series and an optional benchmark series on the same date axis.
// It never fails: metrics that cannot be computed are left nil and the reason
// is recorded in the report's Unavailable map. Portfolio points that are not
// positive are dropped along with their benchmark counterpart.
func ComputeAnalytics(portfolio, benchmark []models.SeriesPoint, opts Options) *models.AnalyticsReport {
	aligned := len(benchmark) == len(portfolio)
	portfolio, benchmark = positivePoints(portfolio, benchmark, aligned)

	report := &models.AnalyticsReport{DataPoints: len(portfolio)}
	if len(portfolio) > 0 {
		report.StartDate = portfolio[0].Date
		report.EndDate = portfolio[len(portfolio)-1].Date
	}

	if len(portfolio) < 2 {
		report.Insufficient = true
		report.MarkUnavailable("report", common.ErrInsufficientHistory.Error())
		return report
	}

	hasBenchmark := opts.BenchmarkEnabled && aligned && len(benchmark) >= 2
	if hasBenchmark && !allPositive(benchmark) {
		hasBenchmark = false
		report.MarkUnavailable("benchmarkComparisons", reasonBadBenchmark)
	}
	report.HasBenchmarkData = hasBenchmark

	computePerformance(report, portfolio, benchmark, hasBenchmark)
	rp := dailyReturns(portfolio)
	computeRisk(report, portfolio, rp, opts)

	if hasBenchmark {
		rb := dailyReturns(benchmark)
		computeBeta(report, rp, rb)
		report.BenchmarkComparisons = computeComparisons(report, rp, rb, opts.BenchmarkID)
	} else {
		report.MarkUnavailable("beta", reasonNoBenchmark)
		report.MarkUnavailable("alpha", reasonNoBenchmark)
	}

	return report
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// positivePoints keeps the portfolio points with a usable value. When the
// benchmark shares the date axis its matching points are kept with them.
func positivePoints(portfolio, benchmark []models.SeriesPoint, aligned bool) ([]models.SeriesPoint, []models.SeriesPoint) {
	if allPositive(portfolio) {
		return portfolio, benchmark
	}
	p := make([]models.SeriesPoint, 0, len(portfolio))
	var b []models.SeriesPoint
	for i, pt := range portfolio {
		if !usable(pt.Value) {
			continue
		}
		p = append(p, pt)
		if aligned {
			b = append(b, benchmark[i])
		}
	}
	if !aligned {
		b = benchmark
	}
	return p, b
}

func allPositive(points []models.SeriesPoint) bool {
	for _, p := range points {
		if !usable(p.Value) {
			return false
		}
	}
	return true
}

func computePerformance(report *models.AnalyticsReport, portfolio, benchmark []models.SeriesPoint, hasBenchmark bool) {
	perf := &report.PerformanceMetrics
	first, last := portfolio[0], portfolio[len(portfolio)-1]

	perf.TotalReturn = f64(periodReturn(first, last))

	if ann, ok := annualizedReturn(portfolio); ok {
		perf.AnnualizedReturn = f64(ann)
	} else {
		report.MarkUnavailable("annualizedReturn", reasonZeroLengthRange)
	}

	if ytd, ok := ytdReturn(portfolio); ok {
		perf.YTDReturn = f64(ytd)
	} else {
		report.MarkUnavailable("ytdReturn", reasonNoYearData)
	}

	for _, w := range []struct {
		years  int
		name   string
		target **float64
	}{
		{1, "rollingReturns.1Y", &perf.RollingReturns.OneYear},
		{3, "rollingReturns.3Y", &perf.RollingReturns.ThreeYear},
		{5, "rollingReturns.5Y", &perf.RollingReturns.FiveYear},
	} {
		if r, ok := rollingReturn(portfolio, w.years); ok {
			*w.target = f64(r)
		} else {
			report.MarkUnavailable(w.name, reasonWindowTooLong)
		}
	}

	bw := &perf.BestWorstPeriods
	bw.BestMonth, bw.WorstMonth = bestWorst(calendarPeriodReturns(portfolio, monthStart))
	if bw.BestMonth == nil {
		report.MarkUnavailable("bestWorstPeriods.month", reasonNoPeriods)
	}
	bw.BestYear, bw.WorstYear = bestWorst(calendarPeriodReturns(portfolio, yearStart))
	if bw.BestYear == nil {
		report.MarkUnavailable("bestWorstPeriods.year", reasonNoPeriods)
	}

	if !hasBenchmark {
		return
	}
	benchAnn, ok := annualizedReturn(benchmark)
	if !ok {
		report.MarkUnavailable("alpha", reasonZeroLengthRange)
		return
	}
	perf.BenchmarkAnnualizedReturn = f64(benchAnn)
	if perf.AnnualizedReturn != nil {
		perf.Alpha = f64(*perf.AnnualizedReturn - benchAnn)
	} else {
		report.MarkUnavailable("alpha", reasonZeroLengthRange)
	}
}

func computeRisk(report *models.AnalyticsReport, portfolio []models.SeriesPoint, rp []float64, opts Options) {
	risk := &report.RiskMetrics

	dd := maxDrawdown(portfolio)
	risk.MaxDrawdown = f64(dd.depth)
	if dd.depth > 0 {
		peak, trough := dd.peak, dd.trough
		risk.DrawdownPeak, risk.DrawdownTrough = &peak, &trough
	}

	vol, ok := annualizedVolatility(rp)
	if !ok {
		for _, m := range []string{"volatility", "sharpeRatio", "valueAtRisk.daily", "riskLevel"} {
			report.MarkUnavailable(m, reasonInsufficient)
		}
		return
	}
	risk.Volatility = f64(vol)
	risk.RiskLevel = ClassifyRisk(vol)

	if v, ok := valueAtRisk95(rp); ok {
		risk.ValueAtRisk.Daily = f64(v)
	}

	switch {
	case vol == 0:
		report.MarkUnavailable("sharpeRatio", reasonZeroVolatility)
	case report.PerformanceMetrics.AnnualizedReturn == nil:
		report.MarkUnavailable("sharpeRatio", reasonZeroLengthRange)
	default:
		risk.SharpeRatio = f64((*report.PerformanceMetrics.AnnualizedReturn - opts.RiskFreeRate) / vol)
	}
}

func computeBeta(report *models.AnalyticsReport, rp, rb []float64) {
	if b, ok := beta(rp, rb); ok {
		report.RiskMetrics.Beta = f64(b)
		return
	}
	report.MarkUnavailable("beta", reasonFlatBenchmark)
}

func computeComparisons(report *models.AnalyticsReport, rp, rb []float64, benchmarkID string) *models.BenchmarkComparisons {
	cmp := &models.BenchmarkComparisons{
		BenchmarkID:              benchmarkID,
		CumulativeOutperformance: f64(cumulativeOutperformance(rp, rb)),
	}

	if c, ok := correlation(rp, rb); ok {
		cmp.Correlation = f64(c)
	} else {
		report.MarkUnavailable("benchmarkComparisons.correlation", reasonZeroVolatility)
	}

	te, ok := trackingError(rp, rb)
	if !ok {
		report.MarkUnavailable("benchmarkComparisons.trackingError", reasonInsufficient)
		report.MarkUnavailable("benchmarkComparisons.informationRatio", reasonInsufficient)
		return cmp
	}
	cmp.TrackingError = f64(te)

	switch alpha := report.PerformanceMetrics.Alpha; {
	case te == 0:
		report.MarkUnavailable("benchmarkComparisons.informationRatio", reasonZeroTrackingError)
	case alpha == nil:
		report.MarkUnavailable("benchmarkComparisons.informationRatio", reasonZeroLengthRange)
	default:
		cmp.InformationRatio = f64(*alpha / te)
	}
	return cmp
}
