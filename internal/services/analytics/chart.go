package analytics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/folio/internal/models"
)

// indexTo100 rebases a series so its first value is 100.
func indexTo100(points []models.SeriesPoint) ([]time.Time, []float64) {
	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	base := points[0].Value
	for i, p := range points {
		xs[i] = p.Date
		ys[i] = p.Value / base * 100
	}
	return xs, ys
}

// RenderPerformanceChart renders a PNG line chart of portfolio growth, and
// benchmark growth when present, both indexed to 100 at the first date.
func RenderPerformanceChart(series *models.AlignedSeries) ([]byte, error) {
	if series == nil || len(series.Portfolio) < 2 {
		n := 0
		if series != nil {
			n = len(series.Portfolio)
		}
		return nil, fmt.Errorf("need at least 2 data points, got %d", n)
	}

	xs, ys := indexTo100(series.Portfolio)
	plots := []chart.Series{
		chart.TimeSeries{
			Name: "Portfolio",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
				StrokeWidth: 2.5,
			},
			XValues: xs,
			YValues: ys,
		},
	}

	if series.HasBenchmark && len(series.Benchmark) == len(series.Portfolio) {
		bx, by := indexTo100(series.Benchmark)
		name := series.BenchmarkID
		if name == "" {
			name = "Benchmark"
		}
		plots = append(plots, chart.TimeSeries{
			Name: name,
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			XValues: bx,
			YValues: by,
		})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Performance (%s)", series.Range.Token),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: plots,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
