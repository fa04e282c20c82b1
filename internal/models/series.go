package models

import "time"

// DateRange is a resolved analytics window. Dates carry no time component.
type DateRange struct {
	Token string    `json:"range"`
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// SeriesPoint is one (date, value) observation.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// AlignedSeries holds a portfolio value series and, when HasBenchmark is set,
// a benchmark series on exactly the same date axis.
type AlignedSeries struct {
	Range        DateRange     `json:"range"`
	BenchmarkID  string        `json:"benchmarkId,omitempty"`
	Portfolio    []SeriesPoint `json:"portfolio"`
	Benchmark    []SeriesPoint `json:"benchmark,omitempty"`
	HasBenchmark bool          `json:"hasBenchmark"`
	Insufficient bool          `json:"insufficient"`
}

// CalendarDate drops the time of day, keeping t's own calendar date, and
// returns it as UTC midnight.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
