package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteChart renders entries as a horizontal stacked bar chart: every
// activity is a row, transparent bars pad to the start of each execution
// slice and coloured bars cover the work.
func WriteChart(w io.Writer, title string, entries []Entry) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "activity"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	names := make([]string, len(entries))
	slots := 0
	for i, e := range entries {
		names[i] = e.Activity
		slots = max(slots, len(e.Executions))
	}
	bar.SetXAxis(names)

	for k := 0; k < slots; k++ {
		gap := make([]opts.BarData, len(entries))
		work := make([]opts.BarData, len(entries))
		for i, e := range entries {
			if k >= len(e.Executions) {
				continue
			}
			ex := e.Executions[k]
			prev := 0
			if k > 0 {
				prev = e.Executions[k-1].To
			}
			gap[i] = opts.BarData{Value: ex.From - prev}
			work[i] = opts.BarData{
				Value: ex.To - ex.From,
				Name:  fmt.Sprintf("%s [%d,%d) x%d", e.Mode, ex.From, ex.To, ex.Parallel),
			}
		}
		bar.AddSeries(fmt.Sprintf("idle %d", k), gap,
			charts.WithBarChartOpts(opts.BarChart{Stack: "schedule"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "rgba(0,0,0,0)"}),
		)
		bar.AddSeries("work", work,
			charts.WithBarChartOpts(opts.BarChart{Stack: "schedule"}),
		)
	}
	bar.XYReversal()

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
