package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders every non-empty histogram as a bar chart on a single
// page.
func WriteHTML(w io.Writer, title string, hs []Histogram) error {
	page := components.NewPage()
	page.PageTitle = title
	for _, h := range hs {
		edges, counts := h.Counts()
		if len(counts) == 0 {
			continue
		}
		x := make([]string, len(counts))
		y := make([]opts.BarData, len(counts))
		for i, c := range counts {
			x[i] = fmt.Sprintf("%.4g", 0.5*(edges[i]+edges[i+1]))
			y[i] = opts.BarData{Value: c}
		}
		s := h.Summarise()

		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
			charts.WithTitleOpts(opts.Title{
				Title:    h.Title,
				Subtitle: fmt.Sprintf("n=%d mean=%.4g sd=%.4g median=%.4g", s.N, s.Mean, s.StdDev, s.Median),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: h.XLabel, NameLocation: "middle", NameGap: 25}),
		)
		bar.SetXAxis(x).AddSeries(h.Name, y)
		page.AddCharts(bar)
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
