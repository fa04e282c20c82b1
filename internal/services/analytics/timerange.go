// Package analytics builds value series and computes performance and risk reports.
package analytics

import (
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// RangeAll is the token for the widest window.
const RangeAll = "ALL"

// allRangeYears is how far back RangeAll reaches, independent of the ledger.
const allRangeYears = 10

type rangeOffset struct{ years, months int }

var rangeOffsets = map[string]rangeOffset{
	"1M": {0, 1},
	"3M": {0, 3},
	"6M": {0, 6},
	"1Y": {1, 0},
	"2Y": {2, 0},
	"5Y": {5, 0},
}

// ParseRangeToken normalises case and whitespace. Unknown tokens map to RangeAll.
func ParseRangeToken(token string) string {
	t := strings.ToUpper(strings.TrimSpace(token))
	if _, ok := rangeOffsets[t]; ok {
		return t
	}
	return RangeAll
}

// ResolveRange maps a range token to calendar dates ending today. Offsets are
// literal calendar offsets (time.AddDate), so month ends normalise the way Go
// normalises dates. "ALL" and any unknown token reach back ten years.
func ResolveRange(token string, today time.Time) models.DateRange {
	end := models.CalendarDate(today)
	t := ParseRangeToken(token)

	start := end.AddDate(-allRangeYears, 0, 0)
	if off, ok := rangeOffsets[t]; ok {
		start = end.AddDate(-off.years, -off.months, 0)
	}

	return models.DateRange{Token: t, Start: start, End: end}
}
