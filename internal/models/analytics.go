package models

import "time"

// RiskLevel is a coarse volatility classification.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
)

// PeriodReturn is the realised return of a calendar period.
type PeriodReturn struct {
	Return    float64   `json:"return"`
	StartDate time.Time `json:"startDate"`
}

// BestWorstPeriods holds the extreme calendar month and year.
type BestWorstPeriods struct {
	BestMonth  *PeriodReturn `json:"bestMonth"`
	WorstMonth *PeriodReturn `json:"worstMonth"`
	BestYear   *PeriodReturn `json:"bestYear"`
	WorstYear  *PeriodReturn `json:"worstYear"`
}

// RollingReturns are annualized trailing-window returns. Nil when the window
// reaches past the start of the series.
type RollingReturns struct {
	OneYear   *float64 `json:"1Y"`
	ThreeYear *float64 `json:"3Y"`
	FiveYear  *float64 `json:"5Y"`
}

// PerformanceMetrics are return statistics. Nil means unavailable; the reason
// is recorded in AnalyticsReport.Unavailable.
type PerformanceMetrics struct {
	TotalReturn               *float64         `json:"totalReturn"`
	AnnualizedReturn          *float64         `json:"annualizedReturn"`
	YTDReturn                 *float64         `json:"ytdReturn"`
	RollingReturns            RollingReturns   `json:"rollingReturns"`
	BestWorstPeriods          BestWorstPeriods `json:"bestWorstPeriods"`
	BenchmarkAnnualizedReturn *float64         `json:"benchmarkAnnualizedReturn,omitempty"`
	Alpha                     *float64         `json:"alpha"`
}

// ValueAtRisk is a parametric loss estimate, reported as a positive magnitude.
type ValueAtRisk struct {
	Daily *float64 `json:"daily"`
}

// RiskMetrics are dispersion and drawdown statistics over daily returns.
type RiskMetrics struct {
	Volatility     *float64    `json:"volatility"`
	MaxDrawdown    *float64    `json:"maxDrawdown"`
	DrawdownPeak   *time.Time  `json:"drawdownPeak,omitempty"`
	DrawdownTrough *time.Time  `json:"drawdownTrough,omitempty"`
	SharpeRatio    *float64    `json:"sharpeRatio"`
	ValueAtRisk    ValueAtRisk `json:"valueAtRisk"`
	Beta           *float64    `json:"beta"`
	RiskLevel      RiskLevel   `json:"riskLevel,omitempty"`
}

// BenchmarkComparisons is only present when HasBenchmarkData is true.
type BenchmarkComparisons struct {
	BenchmarkID              string   `json:"benchmarkId"`
	Correlation              *float64 `json:"correlation"`
	TrackingError            *float64 `json:"trackingError"`
	InformationRatio         *float64 `json:"informationRatio"`
	CumulativeOutperformance *float64 `json:"cumulativeOutperformance"`
}

// AnalyticsReport is the output of one analytics computation.
type AnalyticsReport struct {
	PortfolioID          string                `json:"portfolioId,omitempty"`
	Range                string                `json:"range,omitempty"`
	StartDate            time.Time             `json:"startDate"`
	EndDate              time.Time             `json:"endDate"`
	DataPoints           int                   `json:"dataPoints"`
	Insufficient         bool                  `json:"insufficient"`
	HasBenchmarkData     bool                  `json:"hasBenchmarkData"`
	PerformanceMetrics   PerformanceMetrics    `json:"performanceMetrics"`
	RiskMetrics          RiskMetrics           `json:"riskMetrics"`
	BenchmarkComparisons *BenchmarkComparisons `json:"benchmarkComparisons,omitempty"`
	Unavailable          map[string]string     `json:"unavailable,omitempty"`
}

// MarkUnavailable records why a metric could not be computed.
func (r *AnalyticsReport) MarkUnavailable(metric, reason string) {
	if r.Unavailable == nil {
		r.Unavailable = make(map[string]string)
	}
	r.Unavailable[metric] = reason
}
