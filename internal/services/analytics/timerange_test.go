package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveRange(t *testing.T) {
	today := date(2026, 2, 6)

	tests := []struct {
		token     string
		wantToken string
		wantStart time.Time
	}{
		{"1M", "1M", date(2026, 1, 6)},
		{"3M", "3M", date(2025, 11, 6)},
		{"6M", "6M", date(2025, 8, 6)},
		{"1Y", "1Y", date(2025, 2, 6)},
		{"2Y", "2Y", date(2024, 2, 6)},
		{"5Y", "5Y", date(2021, 2, 6)},
		{"ALL", "ALL", date(2016, 2, 6)},
		{" 1y ", "1Y", date(2025, 2, 6)},
		{"bogus", "ALL", date(2016, 2, 6)},
		{"", "ALL", date(2016, 2, 6)},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got := ResolveRange(tt.token, today)
			assert.Equal(t, tt.wantToken, got.Token)
			assert.Equal(t, tt.wantStart, got.Start)
			assert.Equal(t, today, got.End)
		})
	}
}

func TestResolveRange_AllIsFixedTenYears(t *testing.T) {
	// ALL never depends on portfolio history
	for _, today := range []time.Time{date(2026, 2, 6), date(2030, 12, 31), date(2024, 2, 29)} {
		got := ResolveRange("ALL", today)
		assert.Equal(t, today.AddDate(-10, 0, 0), got.Start)
	}
}

func TestResolveRange_DropsTimeOfDay(t *testing.T) {
	today := time.Date(2026, 2, 6, 17, 45, 12, 999, time.UTC)
	got := ResolveRange("1M", today)
	assert.Equal(t, date(2026, 2, 6), got.End)
	assert.Equal(t, date(2026, 1, 6), got.Start)
}

func TestResolveRange_MonthEndNormalises(t *testing.T) {
	// 31 March minus one month is "31 February", which time.AddDate normalises to 3 March
	got := ResolveRange("1M", date(2026, 3, 31))
	assert.Equal(t, date(2026, 3, 3), got.Start)
}

func TestParseRangeToken(t *testing.T) {
	assert.Equal(t, "6M", ParseRangeToken("6m"))
	assert.Equal(t, RangeAll, ParseRangeToken("all"))
	assert.Equal(t, RangeAll, ParseRangeToken("10Y"))
}
