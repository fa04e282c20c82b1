package analytics

import "math"

// correlation is the Pearson coefficient of two return series.
func correlation(xs, ys []float64) (float64, bool) {
	cov, ok := sampleCovariance(xs, ys)
	if !ok {
		return 0, false
	}
	sx, _ := sampleStdDev(xs)
	sy, _ := sampleStdDev(ys)
	if sx == 0 || sy == 0 {
		return 0, false
	}
	return cov / (sx * sy), true
}

// trackingError is the annualized stdev of active returns rp - rb.
func trackingError(portfolio, benchmark []float64) (float64, bool) {
	if len(portfolio) != len(benchmark) {
		return 0, false
	}
	active := make([]float64, len(portfolio))
	for i := range portfolio {
		active[i] = portfolio[i] - benchmark[i]
	}
	sd, ok := sampleStdDev(active)
	if !ok {
		return 0, false
	}
	return sd * math.Sqrt(tradingDaysPerYear), true
}

// compounded is Π(1+r) - 1.
func compounded(returns []float64) float64 {
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	return growth - 1
}

// cumulativeOutperformance compares compounded growth, not summed returns.
func cumulativeOutperformance(portfolio, benchmark []float64) float64 {
	return compounded(portfolio) - compounded(benchmark)
}
