package view

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/danmu-dashboard-go/internal/models"
)

const (
	ChartWidth  = 800
	ChartHeight = 250

	chartPadX      = 12
	chartPadTop    = 10
	chartPadBottom = 24
	// minimum horizontal distance between two x-axis labels
	chartMinTickGap = 64
)

// ChartWindow returns the [start, end] unix range covering the last days
// days. end is truncated to the minute so viewers within the same minute
// share one query.
func ChartWindow(now time.Time, days int) (int64, int64) {
	end := now.Truncate(time.Minute).Unix()
	return end - int64(days)*24*60*60, end
}

// ChartPoint is one day of the active series in SVG coordinates
type ChartPoint struct {
	X     float64
	Y     float64
	Date  string
	Value uint64
}

// MetricTotal is the sum of one metric over the whole window
type MetricTotal struct {
	Metric models.Metric
	Total  uint64
	Active bool
}

// Chart is a line chart of one metric with totals of all four
type Chart struct {
	Metric   models.Metric
	Width    int
	Height   int
	Points   []ChartPoint
	Ticks    []ChartPoint
	Polyline string
	Max      uint64
	Totals   []MetricTotal
	// Baseline is the y coordinate of a zero value
	Baseline float64
}

// Empty reports whether there is nothing to draw
func (c Chart) Empty() bool {
	return len(c.Points) == 0
}

// BuildChart lays out series, oldest day first
func BuildChart(series []models.StatisticsResult, metric models.Metric, loc *time.Location) Chart {
	days := make([]models.StatisticsResult, len(series))
	copy(days, series)
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Timestamp < days[j].Timestamp
	})

	chart := Chart{
		Metric:   metric,
		Width:    ChartWidth,
		Height:   ChartHeight,
		Baseline: float64(ChartHeight - chartPadBottom),
	}

	for _, m := range models.Metrics {
		var total uint64
		for _, d := range days {
			total += d.Value(m)
		}
		chart.Totals = append(chart.Totals, MetricTotal{Metric: m, Total: total, Active: m == metric})
	}

	if len(days) == 0 {
		return chart
	}

	for _, d := range days {
		if v := d.Value(metric); v > chart.Max {
			chart.Max = v
		}
	}

	plotW := float64(ChartWidth - 2*chartPadX)
	plotH := float64(ChartHeight - chartPadTop - chartPadBottom)
	step := 0.0
	if len(days) > 1 {
		step = plotW / float64(len(days)-1)
	}

	coords := make([]string, 0, len(days))
	lastTick := -float64(chartMinTickGap)
	for i, d := range days {
		v := d.Value(metric)
		x := float64(chartPadX) + step*float64(i)
		if len(days) == 1 {
			x = float64(ChartWidth) / 2
		}
		y := chart.Baseline
		if chart.Max > 0 {
			y -= float64(v) / float64(chart.Max) * plotH
		}

		p := ChartPoint{
			X:     x,
			Y:     y,
			Date:  time.Unix(d.Timestamp, 0).In(loc).Format("2006/01/02"),
			Value: v,
		}
		chart.Points = append(chart.Points, p)
		if x-lastTick >= chartMinTickGap {
			tick := p
			tick.Date = time.Unix(d.Timestamp, 0).In(loc).Format("01/02")
			chart.Ticks = append(chart.Ticks, tick)
			lastTick = x
		}
		coords = append(coords, formatCoord(x)+","+formatCoord(y))
	}
	chart.Polyline = strings.Join(coords, " ")

	return chart
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
