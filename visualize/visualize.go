// Package visualize renders the exploratory charts of the cleaned and daily
// tables with gonum/plot and writes the spreadsheet report.
package visualize

import (
	"context"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
	"github.com/YuminosukeSato/bikecast/pkg/log"
)

// Chart file names.
const (
	FigMissingRatio    = "fig_missing_ratio_zh.png"
	FigDailyTimeseries = "fig_daily_timeseries_zh.png"
	FigMonthlyBoxplot  = "fig_monthly_boxplot_zh.png"
	FigTop10Stations   = "fig_top10_stations_zh.png"
	FigWeekdayBoxplot  = "fig_weekday_boxplot_zh.png"
)

// TopStationCount is the number of stations in the ranking chart.
const TopStationCount = 10

type chart struct {
	name          string
	width, height vg.Length
	build         func() (*plot.Plot, error)
}

// Visualizer writes the chart set into a directory.
type Visualizer struct {
	outDir   string
	fontPath string
	logger   log.Logger
}

// Option configures a Visualizer.
type Option func(*Visualizer)

// WithFont sets the OpenType font registered before drawing.
func WithFont(path string) Option {
	return func(v *Visualizer) { v.fontPath = path }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(v *Visualizer) { v.logger = l }
}

// New creates a Visualizer writing into outDir.
func New(outDir string, opts ...Option) *Visualizer {
	v := &Visualizer{outDir: outDir}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = log.GetLoggerWithName("visualize")
	}
	return v
}

// Render draws every chart and returns the written paths in chart order.
// The station ranking is skipped with a warning when the cleaned table has
// no start station column.
func (v *Visualizer) Render(ctx context.Context, cleaned *frame.Frame, daily []cleaner.DailySummary) ([]string, error) {
	if len(daily) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "daily summary")
	}
	v.loadFont()

	charts := []chart{
		{FigMissingRatio, 8 * vg.Inch, 4 * vg.Inch, func() (*plot.Plot, error) {
			return missingRatioPlot(MissingRatios(cleaned))
		}},
		{FigDailyTimeseries, 10 * vg.Inch, 4 * vg.Inch, func() (*plot.Plot, error) {
			return dailySeriesPlot(daily)
		}},
		{FigMonthlyBoxplot, 8 * vg.Inch, 4 * vg.Inch, func() (*plot.Plot, error) {
			return monthlyBoxPlot(daily)
		}},
	}
	top, err := TopStations(cleaned, TopStationCount)
	switch {
	case err != nil:
		v.logger.Warn("station ranking skipped", log.ColumnKey, cleaner.ColStartStation, log.ErrorTypeKey, "missing column")
	case len(top) == 0:
		v.logger.Warn("station ranking skipped", log.ColumnKey, cleaner.ColStartStation, log.ErrorTypeKey, "no stations")
	default:
		charts = append(charts, chart{FigTop10Stations, 7 * vg.Inch, 5 * vg.Inch, func() (*plot.Plot, error) {
			return topStationsPlot(top)
		}})
	}
	charts = append(charts, chart{FigWeekdayBoxplot, 8 * vg.Inch, 4 * vg.Inch, func() (*plot.Plot, error) {
		return weekdayBoxPlot(daily)
	}})

	start := time.Now()
	paths := make([]string, len(charts))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range charts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(v.outDir, c.name)
			return errors.SafeExecute("render "+c.name, func() error {
				p, err := c.build()
				if err != nil {
					return err
				}
				if err := p.Save(c.width, c.height, path); err != nil {
					return errors.Wrapf(err, "save chart %s", path)
				}
				paths[i] = path
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v.logger.Info("charts written",
		log.StageKey, "plot",
		log.ArtifactsKey, len(paths),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return paths, nil
}

// RenderFiles reads the cleaned and daily files and renders the charts.
func (v *Visualizer) RenderFiles(ctx context.Context, cleanedPath, dailyPath string) ([]string, error) {
	for _, p := range []string{cleanedPath, dailyPath} {
		if err := errors.RequireFile(p, "clean"); err != nil {
			return nil, err
		}
	}
	cleaned, err := frame.ReadFile(cleanedPath)
	if err != nil {
		return nil, err
	}
	daily, err := cleaner.ReadDaily(dailyPath)
	if err != nil {
		return nil, err
	}
	return v.Render(ctx, cleaned, daily)
}

func (v *Visualizer) loadFont() {
	ok, err := RegisterFont(v.fontPath)
	switch {
	case err != nil:
		v.logger.Warn("font could not be loaded; using the default font", err, log.FilePathKey, v.fontPath)
	case !ok:
		v.logger.Warn("font file not found; CJK labels may not render", log.FilePathKey, v.fontPath)
	default:
		v.logger.Info("font registered", log.FilePathKey, v.fontPath)
	}
}
