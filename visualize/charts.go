package visualize

import (
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

var (
	barBlue   = color.RGBA{R: 0x5b, G: 0x8f, B: 0xf9, A: 0xff}
	barYellow = color.RGBA{R: 0xf6, G: 0xbd, B: 0x16, A: 0xff}
)

var weekdayLabels = []string{"星期一", "星期二", "星期三", "星期四", "星期五", "星期六", "星期日"}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

// missingRatioPlot は各欄位の缺值比例を横棒で描く（比例の高い欄位が上）
func missingRatioPlot(ratios []ColumnRatio) (*plot.Plot, error) {
	p := newPlot("各欄位缺值比例 (%)", "缺值百分比 (%)", "")
	n := len(ratios)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i, r := range ratios {
		values[n-1-i] = r.Percent
		labels[n-1-i] = r.Column
	}
	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return nil, errors.Wrap(err, "missing ratio bars")
	}
	bars.Horizontal = true
	bars.Color = barBlue
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(labels...)
	p.X.Min = 0
	return p, nil
}

// dailySeriesPlot は日次の租借回数を折れ線で描く
func dailySeriesPlot(daily []cleaner.DailySummary) (*plot.Plot, error) {
	p := newPlot("每日轉乘租借次數 (2023)", "日期", "租借次數")
	xys := make(plotter.XYs, len(daily))
	for i, d := range daily {
		xys[i].X = float64(d.Date.Unix())
		xys[i].Y = float64(d.Count)
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, errors.Wrap(err, "daily series line")
	}
	line.LineStyle.Width = vg.Points(1.2)
	p.Add(line)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	return p, nil
}

// boxPlot draws one box per non-empty group at its label position.
func boxPlot(title, xLabel, yLabel string, labels []string, groups [][]float64) (*plot.Plot, error) {
	p := newPlot(title, xLabel, yLabel)
	for i, g := range groups {
		if len(g) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(i), plotter.Values(g))
		if err != nil {
			return nil, errors.Wrapf(err, "box %s", labels[i])
		}
		p.Add(box)
	}
	p.NominalX(labels...)
	return p, nil
}

func monthlyBoxPlot(daily []cleaner.DailySummary) (*plot.Plot, error) {
	months := MonthlyCounts(daily)
	labels := make([]string, 0, 12)
	groups := make([][]float64, 0, 12)
	for m, g := range months {
		if len(g) == 0 {
			continue
		}
		labels = append(labels, strconv.Itoa(m+1))
		groups = append(groups, g)
	}
	return boxPlot("各月份每日轉乘次數分佈", "月份", "每日租借次數", labels, groups)
}

func weekdayBoxPlot(daily []cleaner.DailySummary) (*plot.Plot, error) {
	weekdays := WeekdayCounts(daily)
	return boxPlot("星期別每日轉乘租借分佈", "星期", "每日租借次數", weekdayLabels, weekdays[:])
}

// topStationsPlot は租借量前十站を横棒で描く（最多の站が上）
func topStationsPlot(top []StationCount) (*plot.Plot, error) {
	p := newPlot("租借量前十站（出發站）", "租借次數", "")
	n := len(top)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i, s := range top {
		values[n-1-i] = float64(s.Count)
		labels[n-1-i] = s.Station
	}
	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return nil, errors.Wrap(err, "top stations bars")
	}
	bars.Horizontal = true
	bars.Color = barYellow
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(labels...)
	p.X.Min = 0
	return p, nil
}
