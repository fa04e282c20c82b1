package analytics

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/models"
)

const defaultCurrency = "USD"

// formatMoney renders an amount in the currency's minor units, e.g. "$1,234.50".
func formatMoney(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		currency = defaultCurrency
		cur = money.GetCurrency(currency)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}

// formatPct renders a decimal ratio as a percentage with two places.
func formatPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return decimal.NewFromFloat(*v).Shift(2).StringFixed(2) + "%"
}

func formatRatio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}

// BuildNarrativePrompt turns a valuation and analytics report into the prompt
// sent to the narrative generator. Only computed figures are included, so the
// model cannot invent numbers.
func BuildNarrativePrompt(v *models.PortfolioValuation, r *models.AnalyticsReport, currency string) string {
	var b strings.Builder

	b.WriteString("You are a portfolio analyst. Write a concise plain-English summary (at most 150 words) ")
	b.WriteString("of the portfolio below for its owner. Use only the figures given. ")
	b.WriteString("Mention performance, risk and any notable holdings. Do not give financial advice.\n\n")

	fmt.Fprintf(&b, "Portfolio: %s\n", v.Name)
	fmt.Fprintf(&b, "Current value: %s\n", formatMoney(v.CurrentValue, currency))
	fmt.Fprintf(&b, "Total invested: %s\n", formatMoney(v.CostBasis, currency))
	fmt.Fprintf(&b, "Dividends received: %s\n", formatMoney(v.TotalDividends, currency))
	fmt.Fprintf(&b, "Holdings: %d", v.AssetsCount)
	if v.UnpricedCount > 0 {
		fmt.Fprintf(&b, " (%d without a live price)", v.UnpricedCount)
	}
	b.WriteString("\n")

	for _, p := range v.Positions {
		fmt.Fprintf(&b, "- %s (%s): %s, %s of portfolio\n",
			p.Symbol, p.Type, formatMoney(p.CurrentValue, currency), formatPct(f64(p.Allocation/100)))
	}

	fmt.Fprintf(&b, "\nPeriod: %s (%s to %s)\n", r.Range, r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	if r.Insufficient {
		b.WriteString("There is not enough price history for performance statistics.\n")
		return b.String()
	}

	perf, risk := r.PerformanceMetrics, r.RiskMetrics
	fmt.Fprintf(&b, "Total return: %s\n", formatPct(perf.TotalReturn))
	fmt.Fprintf(&b, "Annualized return: %s\n", formatPct(perf.AnnualizedReturn))
	fmt.Fprintf(&b, "Year to date: %s\n", formatPct(perf.YTDReturn))
	fmt.Fprintf(&b, "Volatility: %s (risk level %s)\n", formatPct(risk.Volatility), valueOr(string(risk.RiskLevel), "n/a"))
	fmt.Fprintf(&b, "Max drawdown: %s\n", formatPct(risk.MaxDrawdown))
	fmt.Fprintf(&b, "Sharpe ratio: %s\n", formatRatio(risk.SharpeRatio))
	fmt.Fprintf(&b, "Daily VaR (95%%): %s\n", formatPct(risk.ValueAtRisk.Daily))

	if r.HasBenchmarkData && r.BenchmarkComparisons != nil {
		cmp := r.BenchmarkComparisons
		fmt.Fprintf(&b, "Benchmark %s: alpha %s, beta %s, correlation %s, cumulative outperformance %s\n",
			cmp.BenchmarkID, formatPct(perf.Alpha), formatRatio(risk.Beta),
			formatRatio(cmp.Correlation), formatPct(cmp.CumulativeOutperformance))
	}
	return b.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
