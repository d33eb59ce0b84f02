// Package export renders the persisted profit history as charts and CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"

	"arb-engine/internal/storage"
)

// Downsample thins a series to at most maxPoints by stride sampling, always
// keeping the final point.
func Downsample(points []storage.ProfitPoint, maxPoints int) []storage.ProfitPoint {
	if maxPoints <= 0 || len(points) <= maxPoints {
		return points
	}
	stride := (len(points) + maxPoints - 1) / maxPoints
	out := make([]storage.ProfitPoint, 0, maxPoints)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	if last := points[len(points)-1]; len(out) == 0 || !out[len(out)-1].Cycle.Equal(last.Cycle) {
		out = append(out, last)
	}
	return out
}

// RenderProfitPNG draws expected profit over time as a PNG chart.
func RenderProfitPNG(points []storage.ProfitPoint, title string, w io.Writer) error {
	if len(points) < 2 {
		return fmt.Errorf("export: need at least 2 points to chart, have %d", len(points))
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.Cycle.Unix())
		ys[i] = p.Profit.InexactFloat64()
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "cycle",
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
		},
		YAxis: chart.YAxis{Name: "expected profit"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "expected profit",
				XValues: xs,
				YValues: ys,
			},
		},
	}

	return graph.Render(chart.PNG, w)
}

// WriteCSV streams the history as cycle,expected_profit rows.
func WriteCSV(points []storage.ProfitPoint, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"cycle", "expected_profit"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{p.Cycle.UTC().Format("2006-01-02T15:04:05Z07:00"), p.Profit.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
