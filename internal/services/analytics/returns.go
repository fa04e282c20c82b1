package analytics

import (
	"math"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

const daysPerYear = 365.0

// dailyReturns returns r_t = v_t/v_{t-1} - 1. Values must be positive.
func dailyReturns(points []models.SeriesPoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, len(points)-1)
	for i := 1; i < len(points); i++ {
		out[i-1] = points[i].Value/points[i-1].Value - 1
	}
	return out
}

// calendarDays counts whole days between two dates.
func calendarDays(from, to time.Time) float64 {
	return math.Round(models.CalendarDate(to).Sub(models.CalendarDate(from)).Hours() / 24)
}

// annualize converts a cumulative return over days into a yearly rate.
// A total loss or worse annualizes to -1.
func annualize(total, days float64) (float64, bool) {
	if days <= 0 {
		return 0, false
	}
	base := 1 + total
	if base <= 0 {
		return -1, true
	}
	return math.Pow(base, daysPerYear/days) - 1, true
}

// periodReturn is last/first - 1 between two points.
func periodReturn(first, last models.SeriesPoint) float64 {
	return last.Value/first.Value - 1
}

// annualizedReturn of a whole series. ok is false for a zero-length range.
func annualizedReturn(points []models.SeriesPoint) (float64, bool) {
	first, last := points[0], points[len(points)-1]
	return annualize(periodReturn(first, last), calendarDays(first.Date, last.Date))
}

// valueAsOf returns the last point on or before date.
func valueAsOf(points []models.SeriesPoint, date time.Time) (models.SeriesPoint, bool) {
	var found models.SeriesPoint
	ok := false
	for _, p := range points {
		if p.Date.After(date) {
			break
		}
		found, ok = p, true
	}
	return found, ok
}

// ytdReturn measures the sub-series from January 1 of the final point's
// year: the first in-year value to the last. It needs two in-year points.
func ytdReturn(points []models.SeriesPoint) (float64, bool) {
	last := points[len(points)-1]
	jan1 := yearStart(last.Date)

	for i, p := range points {
		if p.Date.Before(jan1) {
			continue
		}
		if i == len(points)-1 {
			return 0, false
		}
		return periodReturn(p, last), true
	}
	return 0, false
}

// rollingReturn is the annualized return over the trailing window of years
// ending at the last point. ok is false when the window starts before the
// first point.
func rollingReturn(points []models.SeriesPoint, years int) (float64, bool) {
	first, last := points[0], points[len(points)-1]
	windowStart := last.Date.AddDate(-years, 0, 0)
	if windowStart.Before(first.Date) {
		return 0, false
	}
	base, ok := valueAsOf(points, windowStart)
	if !ok {
		return 0, false
	}
	return annualize(periodReturn(base, last), calendarDays(base.Date, last.Date))
}

type periodKey func(time.Time) time.Time

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func yearStart(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

// calendarPeriodReturns splits the series into calendar periods. Each period's
// return is its last value over the previous period's last value; the first
// period is measured from its own first value and skipped if it holds a
// single point.
func calendarPeriodReturns(points []models.SeriesPoint, key periodKey) []models.PeriodReturn {
	var out []models.PeriodReturn
	if len(points) == 0 {
		return out
	}

	var (
		base      = points[0]
		curStart  = key(points[0].Date)
		periodEnd = points[0]
		count     = 0
	)
	flush := func() {
		if count > 0 && periodEnd.Date.After(base.Date) {
			out = append(out, models.PeriodReturn{Return: periodReturn(base, periodEnd), StartDate: curStart})
		}
	}
	for _, p := range points {
		if k := key(p.Date); !k.Equal(curStart) {
			flush()
			base = periodEnd
			curStart = k
			count = 0
		}
		periodEnd = p
		count++
	}
	flush()
	return out
}

// bestWorst picks the highest and lowest period returns. Ties keep the earliest.
func bestWorst(periods []models.PeriodReturn) (best, worst *models.PeriodReturn) {
	for i := range periods {
		p := periods[i]
		if best == nil || p.Return > best.Return {
			best = &p
		}
		if worst == nil || p.Return < worst.Return {
			worst = &p
		}
	}
	return best, worst
}
