package analytics

import (
	"math"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

const (
	tradingDaysPerYear = 252
	// z-score of the 95% one-tailed normal quantile
	varZ95 = 1.645

	lowRiskCeiling    = 0.15
	mediumRiskCeiling = 0.25
)

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev uses the n-1 denominator. ok is false below two observations.
func sampleStdDev(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), true
}

// sampleCovariance of two equal-length series, n-1 denominator.
func sampleCovariance(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var s float64
	for i := range xs {
		s += (xs[i] - mx) * (ys[i] - my)
	}
	return s / float64(len(xs)-1), true
}

// annualizedVolatility is the sample stdev of daily returns scaled by √252.
func annualizedVolatility(returns []float64) (float64, bool) {
	sd, ok := sampleStdDev(returns)
	if !ok {
		return 0, false
	}
	return sd * math.Sqrt(tradingDaysPerYear), true
}

// drawdown is the largest fall from a running peak.
type drawdown struct {
	depth  float64
	peak   time.Time
	trough time.Time
}

func maxDrawdown(points []models.SeriesPoint) drawdown {
	var dd drawdown
	if len(points) == 0 {
		return dd
	}
	peak := points[0]
	for _, p := range points {
		if p.Value > peak.Value {
			peak = p
		}
		if peak.Value <= 0 {
			continue
		}
		if d := (peak.Value - p.Value) / peak.Value; d > dd.depth {
			dd = drawdown{depth: d, peak: peak.Date, trough: p.Date}
		}
	}
	return dd
}

// valueAtRisk95 is the one-day parametric VaR as a positive loss magnitude.
// A distribution whose 5% tail is still a gain reports zero.
func valueAtRisk95(returns []float64) (float64, bool) {
	sd, ok := sampleStdDev(returns)
	if !ok {
		return 0, false
	}
	return math.Max(0, -(mean(returns) - varZ95*sd)), true
}

// beta is cov(rp, rb) / var(rb). ok is false when the benchmark does not move.
func beta(portfolio, benchmark []float64) (float64, bool) {
	cov, ok := sampleCovariance(portfolio, benchmark)
	if !ok {
		return 0, false
	}
	variance, ok := sampleCovariance(benchmark, benchmark)
	if !ok || variance == 0 {
		return 0, false
	}
	return cov / variance, true
}

// ClassifyRisk labels annualized volatility.
func ClassifyRisk(volatility float64) models.RiskLevel {
	switch {
	case volatility < lowRiskCeiling:
		return models.RiskLevelLow
	case volatility < mediumRiskCeiling:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelHigh
	}
}
