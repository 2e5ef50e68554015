package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/veto.report/internal/veto"
)

// AssetsHost is where rendered pages load the echarts script from. Empty
// keeps the go-echarts default CDN.
var AssetsHost = ""

func initOpts(title string) opts.Initialization {
	init := opts.Initialization{
		PageTitle: title,
		Width:     "1000px",
		Height:    "420px",
	}
	if AssetsHost != "" {
		init.AssetsHost = AssetsHost
	}
	return init
}

func roundLabels(rounds []veto.RoundRecord) []string {
	labels := make([]string, len(rounds))
	for i, r := range rounds {
		labels[i] = strconv.Itoa(r.Round) + " " + r.Winner
	}
	return labels
}

// NewPerformanceChart is a line chart of cumulative efficiency and deadtime
// percentages per round.
func NewPerformanceChart(primary string, rounds []veto.RoundRecord) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(primary+" veto rounds")),
		charts.WithTitleOpts(opts.Title{
			Title:    "Cumulative efficiency and deadtime",
			Subtitle: primary,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "percent"}),
	)

	eff := make([]opts.LineData, len(rounds))
	dead := make([]opts.LineData, len(rounds))
	for i, r := range rounds {
		eff[i] = opts.LineData{Value: 100 * r.Efficiency}
		dead[i] = opts.LineData{Value: 100 * r.Deadtime}
	}
	line.SetXAxis(roundLabels(rounds)).
		AddSeries("efficiency", eff).
		AddSeries("deadtime", dead).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	return line
}

// NewSignificanceChart is a bar chart of the winning significance per round.
// Degenerate rounds are plotted at zero and labelled.
func NewSignificanceChart(primary string, rounds []veto.RoundRecord) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(primary+" veto rounds")),
		charts.WithTitleOpts(opts.Title{Title: "Winning significance"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "-log10 p"}),
	)

	data := make([]opts.BarData, len(rounds))
	for i, r := range rounds {
		if len(r.Warnings) > 0 {
			data[i] = opts.BarData{Value: 0, Name: "degenerate"}
			continue
		}
		data[i] = opts.BarData{Value: r.Significance}
	}
	bar.SetXAxis(roundLabels(rounds)).
		AddSeries("significance", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

// WriteRoundsHTML renders both charts onto one HTML page.
func WriteRoundsHTML(w io.Writer, primary string, rounds []veto.RoundRecord) error {
	page := components.NewPage()
	page.PageTitle = primary + " veto rounds"
	if AssetsHost != "" {
		page.SetAssetsHost(AssetsHost)
	}
	page.AddCharts(
		NewPerformanceChart(primary, rounds),
		NewSignificanceChart(primary, rounds),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return nil
}
