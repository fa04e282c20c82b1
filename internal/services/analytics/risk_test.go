package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/models"
)

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		vol  float64
		want models.RiskLevel
	}{
		{0.12, models.RiskLevelLow},
		{0.20, models.RiskLevelMedium},
		{0.30, models.RiskLevelHigh},
		{0, models.RiskLevelLow},
		{0.15, models.RiskLevelMedium},
		{0.25, models.RiskLevelHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyRisk(tt.vol), "volatility %v", tt.vol)
	}
}

func TestSampleStdDev(t *testing.T) {
	sd, ok := sampleStdDev([]float64{1, 2, 3, 4})
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(5.0/3.0), sd, 1e-12)

	_, ok = sampleStdDev([]float64{1})
	assert.False(t, ok)
}

func TestAnnualizedVolatility(t *testing.T) {
	vol, ok := annualizedVolatility([]float64{0.01, -0.01})
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(0.0002)*math.Sqrt(252), vol, 1e-12)
}

func TestMaxDrawdown(t *testing.T) {
	points := []models.SeriesPoint{
		pt(2025, 1, 1, 100), pt(2025, 1, 2, 120), pt(2025, 1, 3, 90),
		pt(2025, 1, 6, 130), pt(2025, 1, 7, 65), pt(2025, 1, 8, 100),
	}
	dd := maxDrawdown(points)
	assert.InDelta(t, 0.5, dd.depth, 1e-12)
	assert.Equal(t, date(2025, 1, 6), dd.peak)
	assert.Equal(t, date(2025, 1, 7), dd.trough)
}

func TestMaxDrawdown_MonotoneRise(t *testing.T) {
	dd := maxDrawdown([]models.SeriesPoint{pt(2025, 1, 1, 1), pt(2025, 1, 2, 2), pt(2025, 1, 3, 3)})
	assert.Equal(t, 0.0, dd.depth)
	assert.True(t, dd.peak.IsZero())
}

func TestValueAtRisk95(t *testing.T) {
	v, ok := valueAtRisk95([]float64{0.01, -0.01})
	require.True(t, ok)
	assert.InDelta(t, 1.645*math.Sqrt(0.0002), v, 1e-12)

	v, ok = valueAtRisk95([]float64{0.01, 0.01, 0.01})
	require.True(t, ok)
	assert.Equal(t, 0.0, v, "gains in the tail floor at zero loss")
}

func TestBeta(t *testing.T) {
	rb := []float64{0.01, -0.01, 0.02, 0.005}
	rp := make([]float64, len(rb))
	for i, r := range rb {
		rp[i] = 2 * r
	}
	b, ok := beta(rp, rb)
	require.True(t, ok)
	assert.InDelta(t, 2.0, b, 1e-12)

	_, ok = beta(rp, []float64{0, 0, 0, 0})
	assert.False(t, ok, "flat benchmark has zero variance")
}

func TestCorrelationAndTrackingError(t *testing.T) {
	rb := []float64{0.01, -0.01, 0.02, 0.005}
	rp := []float64{0.02, -0.02, 0.04, 0.01}

	c, ok := correlation(rp, rb)
	require.True(t, ok)
	assert.InDelta(t, 1.0, c, 1e-12)

	te, ok := trackingError(rb, rb)
	require.True(t, ok)
	assert.Equal(t, 0.0, te)

	_, ok = correlation(rp, []float64{0, 0, 0, 0})
	assert.False(t, ok)
}

func TestCumulativeOutperformance(t *testing.T) {
	got := cumulativeOutperformance([]float64{0.1, 0.1}, []float64{0.1, 0})
	assert.InDelta(t, 0.11, got, 1e-12)
}
