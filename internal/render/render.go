// Package render turns an aggregated report table into an HTML bar chart.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/axlan/dice-logger/internal/model"
)

// Axis titles used in every report.
const (
	XAxisName = "Game Time (min)"
	YAxisName = "Roll"
)

// Renderer writes a visual summary of table to w.
type Renderer interface {
	Render(w io.Writer, table *model.ReportTable) error
}

// BarChart renders one bar per roll, one series per label.
type BarChart struct {
	Width  string
	Height string
}

// NewBarChart creates a full-width bar chart renderer.
func NewBarChart() *BarChart {
	return &BarChart{Width: "100%", Height: "600px"}
}

// Render writes a standalone HTML page.
func (b *BarChart) Render(w io.Writer, table *model.ReportTable) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: table.Title,
			Width:     b.Width,
			Height:    b.Height,
			ChartID:   ChartID(table.Date),
		}),
		charts.WithTitleOpts(opts.Title{Title: table.Title}),
		charts.WithXAxisOpts(opts.XAxis{Name: XAxisName, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: YAxisName, Type: "value"}),
	)

	for _, label := range table.Labels() {
		bar.AddSeries(label, seriesData(table, label))
	}

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// ChartID returns the element id for a report date. go-echarts splices the id
// into JavaScript variable names, so it must be a valid identifier. A fixed id
// keeps output identical for identical input.
func ChartID(date string) string {
	return "rolls_" + strings.ReplaceAll(date, "-", "_")
}

func seriesData(table *model.ReportTable, label string) []opts.BarData {
	var data []opts.BarData
	for _, p := range table.Points {
		if p.Label != label {
			continue
		}
		data = append(data, opts.BarData{
			Name:  label,
			Value: []interface{}{p.ElapsedMinutes, p.Value},
		})
	}
	return data
}

var _ Renderer = (*BarChart)(nil)
